package placelocal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// MaxConcurrentRequests bounds the requests of GetTagsForCampaigns.
const MaxConcurrentRequests = 10

// Tags maps a tag size to the markup of each tag type of that size, e.g.
// tags["medium_rectangle"]["iframe"].
type Tags map[string]map[string]string

// Markup returns the markup of a size and type.
func (t Tags) Markup(size, tagType string) (string, bool) {
	types, ok := t[size]
	if !ok {
		return "", false
	}
	markup, ok := types[tagType]
	return markup, ok && markup != ""
}

// Count returns the number of tags.
func (t Tags) Count() int {
	n := 0
	for _, types := range t {
		n += len(types)
	}
	return n
}

// Sizes returns the sorted tag sizes.
func (t Tags) Sizes() []string {
	out := make([]string, 0, len(t))
	for size := range t {
		out = append(out, size)
	}
	sort.Strings(out)
	return out
}

type tagsData struct {
	HTTPAdTags Tags `json:"http_ad_tags"`
}

// GetTags returns the tags of a campaign. A campaign without tags returns
// nil and no error.
func (c *Client) GetTags(ctx context.Context, cid string) (Tags, error) {
	query := url.Values{}
	query.Set("ispreview", "0")
	query.Set("isae", "0")
	query.Set("animationtime", strconv.Itoa(c.opts.AnimationTime))
	query.Set("usetagmacros", "0")

	var data tagsData
	ok, err := c.get(ctx, fmt.Sprintf("api/v2/campaign/%s/tags", cid), query, &data)
	if err != nil {
		return nil, err
	}
	if !ok || len(data.HTTPAdTags) == 0 {
		c.logger.Warn("no tags found for campaign", "campaign", cid)
		return nil, nil
	}
	return data.HTTPAdTags, nil
}

// GetTagsForCampaigns fetches the tags of every campaign concurrently.
// Campaigns without tags are left out of the result. Failed campaigns are
// also left out and their errors joined into the returned error.
func (c *Client) GetTagsForCampaigns(ctx context.Context, cids []string) (map[string]Tags, error) {
	if len(cids) == 0 {
		return nil, fmt.Errorf("no campaign ids given")
	}
	c.logger.Debug("getting tags for campaigns", "count", len(cids), "campaigns", cids)

	var (
		mu   sync.Mutex
		all  = make(map[string]Tags, len(cids))
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentRequests)
	for _, cid := range cids {
		g.Go(func() error {
			tags, err := c.GetTags(gctx, cid)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("campaign %s: %w", cid, err))
				return nil
			}
			if tags != nil {
				all[cid] = tags
			}
			return nil
		})
	}
	_ = g.Wait()
	return all, errors.Join(errs...)
}

type idList []struct {
	ID json.Number `json:"id"`
}

// ActiveCampaigns returns the IDs of the active campaigns of a publication.
func (c *Client) ActiveCampaigns(ctx context.Context, pid string) ([]string, error) {
	var data struct {
		Campaigns idList `json:"campaigns"`
	}
	query := url.Values{}
	query.Set("status", "active")
	ok, err := c.get(ctx, fmt.Sprintf("api/v2/publication/%s/campaigns", pid), query, &data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	cids := data.Campaigns.ids()
	c.logger.Debug("found active campaigns", "publication", pid, "count", len(cids), "campaigns", cids)
	return cids, nil
}

// Publications returns the publications of a super publisher. A plain
// publisher has none.
func (c *Client) Publications(ctx context.Context, pid string) ([]string, error) {
	if pid == "" {
		return nil, fmt.Errorf("invalid publisher id")
	}
	var data struct {
		Publications idList `json:"publications"`
	}
	ok, err := c.get(ctx, fmt.Sprintf("api/v2/publisher/%s/publications", pid), nil, &data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return data.Publications.ids(), nil
}

// CampaignIDs resolves the campaigns to capture. Explicit campaign IDs win;
// otherwise the active campaigns of every publisher are used, expanding super
// publishers into their publications.
func (c *Client) CampaignIDs(ctx context.Context, cids, pids []string) ([]string, error) {
	if len(cids) > 0 {
		return cids, nil
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("publisher ids must be specified if there are no campaign ids")
	}

	seen := make(map[string]bool)
	var expanded []string
	for _, pid := range pids {
		pubs, err := c.Publications(ctx, pid)
		if err != nil {
			return nil, err
		}
		if len(pubs) == 0 {
			pubs = []string{pid}
		}
		for _, p := range pubs {
			if !seen[p] {
				seen[p] = true
				expanded = append(expanded, p)
			}
		}
	}

	var out []string
	for _, pid := range expanded {
		active, err := c.ActiveCampaigns(ctx, pid)
		if err != nil {
			return nil, err
		}
		out = append(out, active...)
	}
	return out, nil
}

func (l idList) ids() []string {
	out := make([]string, 0, len(l))
	for _, item := range l {
		out = append(out, item.ID.String())
	}
	return out
}
