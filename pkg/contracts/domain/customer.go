package domain

// CustomerRecord represents one row of the customers dataset. Beyond the
// identifier coercion there is no field-level cleaning for customers in the
// current pipeline; profile columns ride along untouched.
type CustomerRecord struct {
	CustomerIDRaw string `json:"customer_id_raw" db:"customer_id_raw"`
	CustomerID    *int64 `json:"customer_id" db:"customer_id"`
	Name          string `json:"name" db:"name"`

	// Profile holds any additional columns from the source file, keyed by
	// header name, preserved verbatim for downstream consumers.
	Profile map[string]string `json:"profile,omitempty" db:"-"`
}

// Empty reports whether the row carries no data at all. Fully empty rows are
// dropped at load time so metrics start from real records.
func (c *CustomerRecord) Empty() bool {
	if c.CustomerID != nil || c.CustomerIDRaw != "" || c.Name != "" {
		return false
	}
	for _, v := range c.Profile {
		if v != "" {
			return false
		}
	}
	return true
}
