package domain

// MonthlyTotal is the income/expense sum of one calendar month.
// Month is the "YYYY-MM" grouping key.
type MonthlyTotal struct {
	Month   string  `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Report is the derived aggregate over a set of movements. It is
// computed on demand and never stored.
type Report struct {
	TotalIncome  float64        `json:"totalIncome"`
	TotalExpense float64        `json:"totalExpense"`
	Balance      float64        `json:"balance"`
	Monthly      []MonthlyTotal `json:"monthly"`
}
