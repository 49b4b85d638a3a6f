package printstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	NotRequired Status
	Pending     Status
	Printing    Status
	Printed     Status
	Failed      Status
}

var Statuses = Enum{
	NotRequired: Status{Name: "not_required"},
	Pending:     Status{Name: "pending"},
	Printing:    Status{Name: "printing"},
	Printed:     Status{Name: "printed"},
	Failed:      Status{Name: "failed"},
}

var All = []Status{
	Statuses.NotRequired,
	Statuses.Pending,
	Statuses.Printing,
	Statuses.Printed,
	Statuses.Failed,
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
