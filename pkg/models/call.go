package models

import (
	"fmt"
	"time"
)

// Layouts accepted for TriggerTime. The second covers timestamps sent
// without a zone designator.
var triggerTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

// SimpleCall is the inbound notification request. It binds from query
// parameters or from a JSON body; field names follow the upstream dialer.
type SimpleCall struct {
	Phone       string `form:"Phone" json:"Phone"`
	Branch      string `form:"Branch" json:"Branch"`
	Headnumber  string `form:"Headnumber" json:"Headnumber"`
	TriggerTime string `form:"TriggerTime" json:"TriggerTime"`
}

// Complete reports whether every field was supplied. Query parameters are
// only used when the whole set is present; otherwise the body is consulted.
func (c SimpleCall) Complete() bool {
	return c.Phone != "" && c.Branch != "" && c.Headnumber != "" && c.TriggerTime != ""
}

func (c SimpleCall) Validate() error {
	if !c.Complete() {
		return fmt.Errorf("incomplete call: phone, branch, headnumber and trigger time are required")
	}
	if _, err := c.ParsedTriggerTime(); err != nil {
		return err
	}
	return nil
}

func (c SimpleCall) ParsedTriggerTime() (time.Time, error) {
	for _, layout := range triggerTimeLayouts {
		if t, err := time.Parse(layout, c.TriggerTime); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized trigger time: %q", c.TriggerTime)
}

// String renders the notification line. TriggerTime does not appear in the
// line the downstream system parses.
func (c SimpleCall) String() string {
	return fmt.Sprintf("Phone: %s, Branch: %s, Headnumber: %s", c.Phone, c.Branch, c.Headnumber)
}
