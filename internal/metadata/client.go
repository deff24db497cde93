// Package metadata is the public client for the schema metadata API:
// listing object types and describing their fields.
package metadata

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/forcegrid/sfschema/internal/api"
	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/output"
)

// Executor issues API requests. Implemented by api.Client.
type Executor interface {
	Execute(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}

// Client lists and describes object types, caching the expensive list call.
type Client struct {
	exec     Executor
	cache    *api.ListCache
	cfg      *config.Config
	collator *collate.Collator
}

// New creates a metadata client.
func New(exec Executor, cache *api.ListCache, cfg *config.Config) *Client {
	return &Client{
		exec:     exec,
		cache:    cache,
		cfg:      cfg,
		collator: collate.New(detectLocale(), collate.IgnoreCase),
	}
}

// detectLocale resolves the user's locale from environment variables,
// falling back to English for unset or unparseable values.
func detectLocale() language.Tag {
	raw := os.Getenv("LC_ALL")
	if raw == "" {
		raw = os.Getenv("LC_COLLATE")
	}
	if raw == "" {
		raw = os.Getenv("LANG")
	}
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, err := language.Parse(raw)
	if err != nil || tag == language.Und {
		return language.English
	}
	return tag
}

func (c *Client) sobjectsPath() string {
	return "/services/data/" + c.cfg.APIVersion + "/sobjects"
}

// ListResources returns object summaries matching the filter. Unless
// ForceRefresh is set, a fresh cached list is used; on miss the list is
// fetched, projected, sorted, and cached unfiltered.
func (c *Client) ListResources(ctx context.Context, f Filter) ([]ResourceSummary, error) {
	if !f.ForceRefresh {
		if raw, ok := c.cache.Get(c.cfg.Environment); ok {
			var all []ResourceSummary
			if err := json.Unmarshal(raw, &all); err == nil {
				return applyFilter(all, f), nil
			}
			// Corrupt cache payload: treat as a miss.
		}
	}

	raw, err := c.exec.Execute(ctx, "GET", c.sobjectsPath(), nil)
	if err != nil {
		return nil, err
	}

	var list wireObjectList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, output.ErrAPI(0, "Malformed object list response", err.Error())
	}

	all := make([]ResourceSummary, 0, len(list.Sobjects))
	for _, entry := range list.Sobjects {
		if entry.DeprecatedAndHidden {
			continue
		}
		all = append(all, ResourceSummary{
			Name:      entry.Name,
			Label:     entry.Label,
			Custom:    entry.Custom,
			Queryable: entry.Queryable,
			KeyPrefix: entry.KeyPrefix,
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		return c.collator.CompareString(all[i].Label, all[j].Label) < 0
	})

	if data, err := json.Marshal(all); err == nil {
		c.cache.Put(c.cfg.Environment, data)
	}

	return applyFilter(all, f), nil
}

// DescribeResource fetches and projects the full field metadata for one
// object type.
func (c *Client) DescribeResource(ctx context.Context, name string) (*Describe, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, output.ErrInvalidInput("Object name is required")
	}

	raw, err := c.exec.Execute(ctx, "GET", c.sobjectsPath()+"/"+name+"/describe", nil)
	if err != nil {
		return nil, err
	}

	var wire wireDescribe
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, output.ErrAPI(0, "Malformed describe response", err.Error())
	}

	desc := &Describe{
		Info: ObjectInfo{
			Name:        wire.Name,
			Label:       wire.Label,
			LabelPlural: wire.LabelPlural,
			KeyPrefix:   wire.KeyPrefix,
			Custom:      wire.Custom,
		},
		Fields: make([]FieldSpec, 0, len(wire.Fields)),
	}
	for _, f := range wire.Fields {
		desc.Fields = append(desc.Fields, f.project())
	}

	return desc, nil
}

// InvalidateCache drops the cached object list for the current environment.
func (c *Client) InvalidateCache() {
	c.cache.Invalidate(c.cfg.Environment)
}

func applyFilter(all []ResourceSummary, f Filter) []ResourceSummary {
	search := strings.ToLower(strings.TrimSpace(f.SearchText))

	out := make([]ResourceSummary, 0, len(all))
	for _, r := range all {
		if f.CustomOnly && !r.Custom {
			continue
		}
		if f.StandardOnly && r.Custom {
			continue
		}
		if f.QueryableOnly && !r.Queryable {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Name), search) &&
			!strings.Contains(strings.ToLower(r.Label), search) {
			continue
		}
		out = append(out, r)
	}
	return out
}
