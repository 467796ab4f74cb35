// Package domainconfig loads the static curated first-party domain list
// from a YAML file at startup and on SIGHUP: the Domain Monitor's subject
// list is file-configured, not API-managed.
package domainconfig

import (
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/synthwatch/e2emon/internal/store"
)

type fileEntry struct {
	Name              string                 `yaml:"name"`
	IntervalSeconds   int                    `yaml:"interval_seconds"`
	TimeoutSeconds    int                    `yaml:"timeout_seconds"`
	JitterSeconds     int                    `yaml:"jitter_seconds"`
	DownAfterFailures int                    `yaml:"down_after_failures"`
	UpAfterSuccesses  int                    `yaml:"up_after_successes"`
	Disabled          bool                   `yaml:"disabled"`
	HTTPCheck         map[string]interface{} `yaml:"http_check"`
	BrowserCheck      map[string]interface{} `yaml:"browser_check"`
	Heartbeat         map[string]interface{} `yaml:"heartbeat"`
	Alerting          map[string]interface{} `yaml:"alerting"`
}

type file struct {
	Domains []fileEntry `yaml:"domains"`
}

// Provider holds the currently loaded domain list behind an atomic
// pointer, so a SIGHUP reload swaps the whole snapshot without readers
// ever observing a half-updated list.
type Provider struct {
	path string
	snap atomic.Pointer[map[string]*store.Domain]
}

func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

func (p *Provider) Load() ([]*store.Domain, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	domains := make([]*store.Domain, 0, len(f.Domains))
	byName := make(map[string]*store.Domain, len(f.Domains))
	for _, e := range f.Domains {
		d := &store.Domain{
			Name:              e.Name,
			HTTPCheckCfg:      store.JSONB(e.HTTPCheck),
			BrowserCheckCfg:   store.JSONB(e.BrowserCheck),
			HeartbeatCfg:      store.JSONB(e.Heartbeat),
			AlertingCfg:       store.JSONB(e.Alerting),
			Disabled:          e.Disabled,
			IntervalSeconds:   e.IntervalSeconds,
			TimeoutSeconds:    e.TimeoutSeconds,
			JitterSeconds:     e.JitterSeconds,
			DownAfterFailures: e.DownAfterFailures,
			UpAfterSuccesses:  e.UpAfterSuccesses,
		}
		domains = append(domains, d)
		byName[d.Name] = d
	}
	p.snap.Store(&byName)
	return domains, nil
}

// Get returns the Domain entry for name from the currently loaded
// snapshot, or nil if the name is unknown or nothing is loaded yet. It
// does not merge with any DB-sourced Domain row.
func (p *Provider) Get(name string) *store.Domain {
	snap := p.snap.Load()
	if snap == nil {
		return nil
	}
	return (*snap)[name]
}

// Names returns the current domain name set, used to prune Postgres rows
// for domains removed from the file on reload.
func (p *Provider) Names() []string {
	snap := p.snap.Load()
	if snap == nil {
		return nil
	}
	names := make([]string, 0, len(*snap))
	for name := range *snap {
		names = append(names, name)
	}
	return names
}
