package model

import (
	"fmt"
	"strings"
)

// Comment is a single finding anchored to a file line. The message is a
// template; {name} and %name% placeholders are replaced by Params.
type Comment struct {
	Tool    string
	ID      string
	Message string
	Params  map[string]any
}

// NewComment builds a comment. params may be nil.
func NewComment(tool, id, message string, params map[string]any) Comment {
	return Comment{Tool: tool, ID: id, Message: message, Params: params}
}

// String renders the message with all known placeholders substituted.
func (c Comment) String() string {
	if len(c.Params) == 0 {
		return c.Message
	}

	pairs := make([]string, 0, len(c.Params)*4) //nolint:mnd // two placeholder styles, old/new each.

	for name, value := range c.Params {
		rendered := fmt.Sprint(value)
		pairs = append(pairs, "{"+name+"}", rendered, "%"+name+"%", rendered)
	}

	return strings.NewReplacer(pairs...).Replace(c.Message)
}

// Equal reports whether both comments render to the same text.
func (c Comment) Equal(other Comment) bool {
	return c.String() == other.String()
}
