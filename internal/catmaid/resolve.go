package catmaid

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ajitpratap0/catmaid-go/internal/metrics"
)

// ResolveSkeletonIDs turns a mixed list of skeleton specifiers into IDs:
//
//   - a numeric string is taken as a skeleton ID verbatim
//   - "annotation:X" resolves to every skeleton annotated with X
//   - "name:X" resolves skeletons by exact neuron name
//   - anything else is treated as a neuron name
//
// The result preserves first-seen order and drops duplicates.
func (c *Client) ResolveSkeletonIDs(ctx context.Context, exprs ...string) ([]int64, error) {
	metrics.Inc(metrics.ResolveTotal)

	var out []int64
	seen := make(map[int64]bool)
	add := func(ids []int64) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}

	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if id, err := strconv.ParseInt(expr, 10, 64); err == nil {
			add([]int64{id})
			continue
		}
		switch {
		case strings.HasPrefix(expr, "annotation:"), strings.HasPrefix(expr, "annotations:"):
			name := expr[strings.Index(expr, ":")+1:]
			ids, err := c.SkeletonIDsByAnnotation(ctx, name)
			if err != nil {
				return nil, err
			}
			add(ids)
		case strings.HasPrefix(expr, "name:"):
			ids, err := c.SkeletonIDsByName(ctx, strings.TrimPrefix(expr, "name:"))
			if err != nil {
				return nil, err
			}
			add(ids)
		default:
			ids, err := c.SkeletonIDsByName(ctx, expr)
			if err != nil {
				return nil, err
			}
			add(ids)
		}
	}
	return out, nil
}

// annotationEntity is one row of an annotation query-targets response.
type annotationEntity struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SkeletonIDs []int64 `json:"skeleton_ids"`
}

// ListAnnotations returns every annotation defined in the project, as
// ID/name pairs keyed by name.
func (c *Client) ListAnnotations(ctx context.Context) (map[string]int64, error) {
	var payload struct {
		Annotations []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"annotations"`
	}
	path := fmt.Sprintf("/%d/annotations/", c.projectID)
	if err := c.get(ctx, "annotations", path, &payload); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(payload.Annotations))
	for _, a := range payload.Annotations {
		out[a.Name] = a.ID
	}
	return out, nil
}

// SkeletonIDsByAnnotation returns the skeletons annotated with the given
// annotation name.
func (c *Client) SkeletonIDsByAnnotation(ctx context.Context, name string) ([]int64, error) {
	annotations, err := c.ListAnnotations(ctx)
	if err != nil {
		return nil, err
	}
	annotationID, ok := annotations[name]
	if !ok {
		return nil, fmt.Errorf("catmaid: annotation %q not found in project %d", name, c.projectID)
	}

	form := url.Values{}
	form.Set("annotated_with", strconv.FormatInt(annotationID, 10))
	form.Set("types[0]", "neuron")
	return c.queryTargets(ctx, form)
}

// SkeletonIDsByName returns the skeletons whose neuron name matches name
// exactly.
func (c *Client) SkeletonIDsByName(ctx context.Context, name string) ([]int64, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("name_exact", "true")
	form.Set("types[0]", "neuron")
	return c.queryTargets(ctx, form)
}

func (c *Client) queryTargets(ctx context.Context, form url.Values) ([]int64, error) {
	var payload struct {
		Entities []annotationEntity `json:"entities"`
	}
	path := fmt.Sprintf("/%d/annotations/query-targets", c.projectID)
	if err := c.post(ctx, "query-targets", path, form, &payload); err != nil {
		return nil, err
	}
	var out []int64
	for _, e := range payload.Entities {
		out = append(out, e.SkeletonIDs...)
	}
	return out, nil
}
