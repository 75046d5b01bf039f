// Package tee implements the Tee Inserter (spec §4.3): it rewrites a link
// set so that any source pad feeding more than one destination gets a
// duplicator element spliced in automatically, since the underlying engine
// (like GStreamer) only allows a src pad to drive a single peer directly.
// Grounded on the teacher's internal/pipeline/exec fan-out helper, which
// performs the analogous "one producer, N consumers" rewrite for its
// worker graph.
package tee

import (
	"strconv"
	"strings"

	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/ids"
)

// DuplicatorElementType is the element type instantiated for an
// auto-inserted tee.
const DuplicatorElementType = "tee"

// DuplicatorRequestTemplate is the request-pad template duplicators expose
// for each fan-out consumer.
const DuplicatorRequestTemplate = "src_%u"

// Result is the tee-inserted link set plus the duplicators that were
// synthesized, keyed by the source PadRef they replace.
type Result struct {
	Links       []flow.Link
	Duplicators map[string]Duplicator
}

// Duplicator is one auto-inserted fan-out element.
type Duplicator struct {
	ElementID string
	Source    ids.PadRef
	FanOut    int
}

// Insert scans links for any source PadRef driving two or more
// destinations and splices in a duplicator element for each, named
// `auto_tee_<source_owner>_<source_pad>` (colons replaced with
// underscores so the id stays a legal element id). Sources with exactly
// one destination pass through unchanged; Insert is a no-op in that case
// for the whole link set.
func Insert(links []flow.Link) Result {
	bySource := map[string][]flow.Link{}
	var order []string
	for _, l := range links {
		key := l.From
		if _, seen := bySource[key]; !seen {
			order = append(order, key)
		}
		bySource[key] = append(bySource[key], l)
	}

	res := Result{Duplicators: map[string]Duplicator{}}
	for _, key := range order {
		group := bySource[key]
		if len(group) < 2 {
			res.Links = append(res.Links, group...)
			continue
		}

		srcRef := group[0].FromRef()
		dupID := duplicatorID(srcRef)
		res.Links = append(res.Links, flow.Link{From: key, To: dupID})

		for i, l := range group {
			pad := instantiatePad(DuplicatorRequestTemplate, i)
			res.Links = append(res.Links, flow.Link{
				From: ids.PadRef{Owner: dupID, Pad: pad}.String(),
				To:   l.To,
			})
		}

		res.Duplicators[key] = Duplicator{ElementID: dupID, Source: srcRef, FanOut: len(group)}
	}
	return res
}

func duplicatorID(src ids.PadRef) string {
	name := src.String()
	name = strings.ReplaceAll(name, ":", "_")
	return "auto_tee_" + name
}

func instantiatePad(template string, n int) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] == '%' && i+1 < len(template) && (template[i+1] == 'u' || template[i+1] == 'd') {
			b.WriteString(strconv.Itoa(n))
			i++
			continue
		}
		b.WriteByte(template[i])
	}
	return b.String()
}
