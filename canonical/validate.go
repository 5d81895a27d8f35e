package canonical

// =============================================================================
// REQUIRED-FIELD PRECONDITIONS
// =============================================================================
// The input contract requires the identifier fields on each table. A field is
// "missing" when no row in the table carries a value for it: a table-wide
// identifier hole points at a broken source mapping, so the whole run is
// rejected before any computation. Amount and date gaps are a recoverable
// row-level condition, even when every row has one: a charge without a period
// start expands to no expected rows and a zero amount aggregates as zero.
// Those degrade downstream instead of failing here.

// Canonical field names, as they appear in error reports and output tables.
const (
	FieldScheduledChargeID = "scheduled_charge_id"
	FieldPropertyID        = "property_id"
	FieldLeaseIntervalID   = "lease_interval_id"
	FieldARCodeID          = "ar_code_id"
	FieldTransactionID     = "transaction_id"
)

// ValidateScheduledCharges checks the scheduled-charge table precondition.
// Returns a MissingFieldsError naming every absent field, or nil.
func ValidateScheduledCharges(charges []ScheduledCharge) error {
	if len(charges) == 0 {
		return nil
	}

	missing := map[string]bool{
		FieldScheduledChargeID: true,
		FieldPropertyID:        true,
		FieldLeaseIntervalID:   true,
		FieldARCodeID:          true,
	}

	for _, c := range charges {
		if c.ID != 0 {
			delete(missing, FieldScheduledChargeID)
		}
		if c.PropertyID != 0 {
			delete(missing, FieldPropertyID)
		}
		if c.LeaseIntervalID != 0 {
			delete(missing, FieldLeaseIntervalID)
		}
		if c.ARCodeID != 0 {
			delete(missing, FieldARCodeID)
		}
		if len(missing) == 0 {
			return nil
		}
	}

	return &MissingFieldsError{Table: "scheduled_charges", Fields: keys(missing)}
}

// ValidateARTransactions checks the actual-transaction table precondition.
// Returns a MissingFieldsError naming every absent field, or nil.
func ValidateARTransactions(txs []ARTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	missing := map[string]bool{
		FieldTransactionID:   true,
		FieldPropertyID:      true,
		FieldLeaseIntervalID: true,
		FieldARCodeID:        true,
	}

	for _, t := range txs {
		if t.ID != 0 {
			delete(missing, FieldTransactionID)
		}
		if t.PropertyID != 0 {
			delete(missing, FieldPropertyID)
		}
		if t.LeaseIntervalID != 0 {
			delete(missing, FieldLeaseIntervalID)
		}
		if t.ARCodeID != 0 {
			delete(missing, FieldARCodeID)
		}
		if len(missing) == 0 {
			return nil
		}
	}

	return &MissingFieldsError{Table: "actual_transactions", Fields: keys(missing)}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
