package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/observability"
)

// RouteInfo represents a registered HTTP route.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

// Summary tracks and displays the application bootstrap process. Components
// are read from the registry when the summary is displayed; routes are
// tracked explicitly.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	routes          []RouteInfo
	out             io.Writer
}

// NewSummary creates a new bootstrap summary tracker writing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
		routes:      make([]RouteInfo, 0),
		out:         os.Stdout,
	}
}

// SetOutput redirects the summary.
func (s *Summary) SetOutput(w io.Writer) {
	s.out = w
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path, handler string) {
	s.routes = append(s.routes, RouteInfo{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
}

// Routes returns the tracked routes.
func (s *Summary) Routes() []RouteInfo {
	return s.routes
}

// DisplaySummary prints the bootstrap summary including live state and
// health from the registry.
func (s *Summary) DisplaySummary(registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n\n",
		s.serviceName, s.version, s.startupDuration.Seconds())

	var infos []component.Info
	if registry != nil {
		infos = registry.List()
	}

	if len(infos) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n")
	} else {
		fmt.Fprintf(w, "📦 Components\n")
		started := 0
		for i, info := range infos {
			prefix := branch(i, len(infos))
			fmt.Fprintf(w, "   %s %s %s (%s)%s\n", prefix, stateIcon(info.State), info.Name, info.State, componentDetails(info))
			for j, dep := range info.Dependencies {
				fmt.Fprintf(w, "   %s %s 🔗 %s\n", indent(i, len(infos)), branch(j, len(info.Dependencies)), dep)
			}
			if info.State == component.Started {
				started++
			}
		}
		fmt.Fprintf(w, "\n")
		if started == len(infos) {
			fmt.Fprintf(w, "✅ All components started (%d/%d)\n", started, len(infos))
		} else {
			fmt.Fprintf(w, "⚠️  Some components are not running (%d/%d started)\n", started, len(infos))
		}
	}

	if len(s.routes) > 0 {
		fmt.Fprintf(w, "\n🌐 Routes (%d)\n", len(s.routes))
		for i, r := range s.routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", branch(i, len(s.routes)), r.Method, r.Path, r.Handler)
		}
	}

	if registry != nil {
		s.displayHealth(registry, infos)
	}
	fmt.Fprintf(w, "\n")
}

func (s *Summary) displayHealth(registry *component.Registry, infos []component.Info) {
	var results []observability.Health
	for _, info := range infos {
		c, err := registry.Get(info.Name)
		if err != nil {
			continue
		}
		if hc, ok := c.(observability.HealthChecker); ok {
			h := hc.CheckHealth(context.Background())
			h.Name = info.Name
			results = append(results, h)
		}
	}
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(s.out, "\n🏥 Health Check\n")
	for i, h := range results {
		msg := ""
		if h.Message != "" {
			msg = fmt.Sprintf(": %s", h.Message)
		}
		fmt.Fprintf(s.out, "   %s %s %s %s%s\n", branch(i, len(results)), healthStatusIcon(h.Status), h.Name, h.Status, msg)
	}
}

func componentDetails(info component.Info) string {
	var parts []string
	if info.Description != nil {
		if info.Description.Type != "" {
			parts = append(parts, info.Description.Type)
		}
		if info.Description.Details != "" {
			parts = append(parts, info.Description.Details)
		}
	}
	if info.Updatable {
		parts = append(parts, "every "+info.Interval.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func indent(i, n int) string {
	if i == n-1 {
		return "   "
	}
	return "│  "
}

func stateIcon(state component.State) string {
	switch state {
	case component.Started:
		return "✅"
	case component.Paused:
		return "⏸️"
	default:
		return "⏹️"
	}
}

func healthStatusIcon(status observability.HealthStatus) string {
	switch status {
	case observability.HealthStatusUp:
		return "✅"
	case observability.HealthStatusDegraded:
		return "⚠️"
	case observability.HealthStatusDown:
		return "❌"
	default:
		return "❓"
	}
}
