package channel

import "strings"

type Channel struct {
	Name string
}

func (c Channel) Code() string {
	return c.Name
}

func (c Channel) Label() string {
	if len(c.Name) == 0 {
		return ""
	}
	return strings.ToUpper(c.Name[:1]) + c.Name[1:]
}

type Enum struct {
	Display Channel
	Print   Channel
}

var Channels = Enum{
	Display: Channel{Name: "display"},
	Print:   Channel{Name: "print"},
}

var All = []Channel{
	Channels.Display,
	Channels.Print,
}

// ByName returns the channel for a given name, or nil if not found
func ByName(name string) *Channel {
	for _, c := range All {
		if c.Name == name {
			return &c
		}
	}
	return nil
}
