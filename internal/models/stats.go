package models

type StatusCounts struct {
	Waiting   int `json:"waiting"`
	Serving   int `json:"serving"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
}

func (c *StatusCounts) Add(status string) {
	switch status {
	case StatusWaiting:
		c.Waiting++
	case StatusServing:
		c.Serving++
	case StatusCompleted:
		c.Completed++
	case StatusSkipped:
		c.Skipped++
	}
}

type Stats struct {
	Total        StatusCounts            `json:"total"`
	ByDepartment map[string]StatusCounts `json:"by_department"`
}

type DepartmentQueue struct {
	Department
	Waiting int      `json:"waiting"`
	Next    []string `json:"next"`
}

// Display is the snapshot rendered by the shared queue display board.
type Display struct {
	Counters     []CounterView     `json:"counters"`
	Departments  []DepartmentQueue `json:"departments"`
	TotalWaiting int               `json:"total_waiting"`
	IsSpeaking   bool              `json:"is_speaking"`
}
