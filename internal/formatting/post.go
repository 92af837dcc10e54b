// Package formatting composes incident post text and the accompanying map link.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"crash_watcher/internal/model"
	"crash_watcher/internal/roadway"
)

const (
	unknownStreet = "an unknown street"
	unknownTime   = "Unknown time"
	badTime       = "Unknown time (parse error)"
	// MapLinkTitle is the card title for the incident map link.
	MapLinkTitle = "View Crash Location"
	timeLayout   = "3:04 PM on Jan 02"
)

// Message is a composed incident post.
type Message struct {
	Prompt      string
	Text        string
	MapURL      string
	Description string
}

// Compose lays out the post body for inc on rw using the chosen prompt and resolved city.
func Compose(rw roadway.Roadway, prompt string, inc model.Incident, city string, loc *time.Location) Message {
	street := Street(inc.Street)
	desc := fmt.Sprintf("Near %s in %s", street, city)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", rw.Emojis.Intro, prompt)
	fmt.Fprintf(&b, "%s Location: %s.\n", rw.Emojis.Location, desc)
	fmt.Fprintf(&b, "%s Reported at: %s\n", rw.Emojis.ReportedAt, ReportedAt(inc, loc))
	b.WriteString(rw.Hashtags)
	return Message{
		Prompt:      prompt,
		Text:        b.String(),
		MapURL:      MapURL(inc.Location()),
		Description: desc,
	}
}

// Street returns the label or a placeholder when the feed left it blank.
func Street(label string) string {
	if s := strings.TrimSpace(label); s != "" {
		return s
	}
	return unknownStreet
}

// ReportedAt renders the publish time in loc, e.g. "3:04 PM on Jan 02".
func ReportedAt(inc model.Incident, loc *time.Location) string {
	if strings.TrimSpace(inc.Published) == "" {
		return unknownTime
	}
	t := inc.PublishedAt
	if t.IsZero() {
		parsed, err := model.ParseTimestamp(inc.Published)
		if err != nil {
			return badTime
		}
		t = parsed
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(timeLayout)
}

// MapURL is a Google Maps search link centred on c.
func MapURL(c model.Coordinate) string {
	return "https://www.google.com/maps/search/?api=1&query=" +
		strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}
