package notifications

const (
	TypeResultConfirmed = "year_end_result_confirmed"
	TypeResultPaid      = "year_end_result_paid"
)
