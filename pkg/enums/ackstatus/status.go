// Package ackstatus lists the actions a device can report against a kitchen
// ticket.
package ackstatus

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

type Enum struct {
	Received  Status
	Printing  Status
	Printed   Status
	Failed    Status
	Completed Status
}

var Statuses = Enum{
	Received:  Status{Name: "received"},
	Printing:  Status{Name: "printing"},
	Printed:   Status{Name: "printed"},
	Failed:    Status{Name: "failed"},
	Completed: Status{Name: "completed"},
}

var All = []Status{
	Statuses.Received,
	Statuses.Printing,
	Statuses.Printed,
	Statuses.Failed,
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
