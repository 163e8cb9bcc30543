package scraper

import (
	"testing"

	"github.com/use-agent/prodscrape/config"
)

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLifecycleWaiter(t *testing.T) {
	tests := []struct {
		name   string
		target string
		events [][2]string // {name, frameID}
		want   bool
	}{
		{
			name:   "dom content loaded on main frame",
			target: "DOMContentLoaded",
			events: [][2]string{{"init", "main"}, {"DOMContentLoaded", "main"}},
			want:   true,
		},
		{
			name:   "ready before load",
			target: "DOMContentLoaded",
			events: [][2]string{{"init", "main"}, {"DOMContentLoaded", "main"}, {"load", "main"}},
			want:   true,
		},
		{
			name:   "previous document ignored",
			target: "load",
			events: [][2]string{{"load", "main"}, {"networkIdle", "main"}},
			want:   false,
		},
		{
			name:   "subframe event ignored",
			target: "DOMContentLoaded",
			events: [][2]string{{"init", "main"}, {"init", "ad-frame"}, {"DOMContentLoaded", "ad-frame"}},
			want:   false,
		},
		{
			name:   "other event does not satisfy target",
			target: "networkIdle",
			events: [][2]string{{"init", "main"}, {"DOMContentLoaded", "main"}, {"load", "main"}},
			want:   false,
		},
		{
			name:   "network idle after load",
			target: "networkIdle",
			events: [][2]string{{"init", "main"}, {"load", "main"}, {"networkIdle", "main"}, {"networkIdle", "main"}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newLifecycleWaiter(tt.target)
			for _, ev := range tt.events {
				w.observe(ev[0], ev[1])
			}
			if got := closed(w.Done()); got != tt.want {
				t.Errorf("ready = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadyEvents_CoverEveryCondition(t *testing.T) {
	want := map[string]string{
		config.WaitDOMContentLoaded: "DOMContentLoaded",
		config.WaitLoad:             "load",
		config.WaitNetworkIdle:      "networkIdle",
	}
	for cond, event := range want {
		if got := readyEvents[cond]; got != event {
			t.Errorf("readyEvents[%q] = %q, want %q", cond, got, event)
		}
		if _, ok := lifecycleEvents[cond]; !ok {
			t.Errorf("rod has no lifecycle event for %q", cond)
		}
	}
}
