package ticketstatus

import "strings"

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Pending      Status
	Acknowledged Status
	Completed    Status
}

var Statuses = Enum{
	Pending:      Status{Name: "pending"},
	Acknowledged: Status{Name: "acknowledged"},
	Completed:    Status{Name: "completed"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Acknowledged,
	Statuses.Completed,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
