package config

import (
	"sort"
	"strings"

	logx "cadence/pkg/logx"
)

// DiffJobs compares enabled jobs by name. A job whose definition changed in
// any way lands in changed; disabling a job counts as removing it.
func DiffJobs(oldCfg, newCfg *Config) (added, removed, changed []string) {
	oldJobs := jobsByName(oldCfg)
	newJobs := jobsByName(newCfg)

	for name, n := range newJobs {
		o, ok := oldJobs[name]
		switch {
		case !ok:
			added = append(added, name)
		case hashJSON(o) != hashJSON(n):
			changed = append(changed, name)
		}
	}
	for name := range oldJobs {
		if _, ok := newJobs[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}

func jobsByName(cfg *Config) map[string]JobConfig {
	if cfg == nil {
		return map[string]JobConfig{}
	}
	m := make(map[string]JobConfig, len(cfg.Jobs))
	for _, j := range cfg.Jobs {
		if j.Disabled {
			continue
		}
		m[strings.TrimSpace(j.Name)] = j
	}
	return m
}

// SummarizeConfigChange returns the changed top-level sections plus compact
// structured attrs for a single reload log line.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 10)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "timezone")
		attrs = append(attrs, logx.String("timezone", strings.TrimSpace(newCfg.Timezone)))
	}

	// Nil means disabled.
	var oj, nj JournalConfig
	if oldCfg.Journal != nil {
		oj = *oldCfg.Journal
	}
	if newCfg.Journal != nil {
		nj = *newCfg.Journal
	}
	if oj != nj {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.String("journal.driver", strings.TrimSpace(nj.Driver)),
			logx.Bool("journal.path_set", strings.TrimSpace(nj.Path) != ""),
		)
	}

	added, removed, jobChanged := DiffJobs(oldCfg, newCfg)
	if len(added)+len(removed)+len(jobChanged) > 0 {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.added", len(added)),
			logx.Int("jobs.removed", len(removed)),
			logx.Int("jobs.changed", len(jobChanged)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
