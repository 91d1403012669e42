package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/shared"
)

var _ list.Item = hostItem{}

// hostItem wraps [mirrors.HostRecord] to implement [list.Item].
type hostItem struct {
	rank   int
	record mirrors.HostRecord
}

func (i hostItem) FilterValue() string { return i.record.URL }
func (i hostItem) Title() string       { return fmt.Sprintf("%d. %s", i.rank, i.record.URL) }
func (i hostItem) Description() string {
	latency := shared.FormatLatency(i.record.Latency, i.record.Reachable())
	return fmt.Sprintf("%s • %s", styles.latency(i.record).Render(latency), route(i.record))
}

func route(rec mirrors.HostRecord) string {
	if rec.Relayed {
		return "relay"
	}
	return "direct"
}

func hostItems(records []mirrors.HostRecord) []list.Item {
	items := make([]list.Item, len(records))
	for i, rec := range records {
		items[i] = hostItem{rank: i + 1, record: rec}
	}
	return items
}
