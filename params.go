package qtrc

import (
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"
)

// Params is the lazily allocated bag of optional query shape metadata for a
// session. A session that never has a parameter set never allocates one, and
// its record carries no parameter map at all.
//
// Params is owned by a single session and is not safe for concurrent use on
// its own; the owning session serializes access.
type Params struct {
	endpoints     []netip.Addr
	hasEndpoints  bool
	consistency   Consistency
	hasCL         bool
	serial        Consistency
	hasSerialCL   bool
	pageSize      int
	queries       []string
	userTimestamp int64
	hasTimestamp  bool
}

// setBatchlogEndpoints replaces the endpoint set. Duplicates are discarded
// and the set is kept sorted so the rendered form is deterministic.
func (p *Params) setBatchlogEndpoints(eps []netip.Addr) {
	set := slices.Clone(eps)
	slices.SortFunc(set, netip.Addr.Compare)
	set = slices.Compact(set)
	p.endpoints = set
	p.hasEndpoints = true
}

func (p *Params) setConsistency(cl Consistency) {
	p.consistency = cl
	p.hasCL = true
}

// setSerialConsistency replaces the serial consistency level only when the
// caller actually supplied one. A nil value preserves whatever was set
// before.
func (p *Params) setSerialConsistency(cl *Consistency) {
	if cl == nil {
		return
	}
	p.serial = *cl
	p.hasSerialCL = true
}

// setPageSize stores the page size. Zero and negative values are ignored, so
// a stored page size is always positive.
func (p *Params) setPageSize(n int) {
	if n > 0 {
		p.pageSize = n
	}
}

func (p *Params) addQuery(q string) {
	p.queries = append(p.queries, q)
}

func (p *Params) setUserTimestamp(ts int64) {
	p.userTimestamp = ts
	p.hasTimestamp = true
}

// render writes every parameter that was set into m, and nothing else. A
// single query is keyed "query"; a batch is keyed "query[0]", "query[1]", …
// in append order, which is how downstream inspection tells statements from
// batches apart. Endpoints render as comma-joined address literals, each
// prefixed with a slash.
func (p *Params) render(m map[string]string) error {
	if p.hasEndpoints {
		eps := make([]string, len(p.endpoints))
		for i, ep := range p.endpoints {
			eps[i] = "/" + ep.String()
		}
		m["batch_endpoints"] = strings.Join(eps, ",")
	}

	if p.hasCL {
		s, err := p.consistency.render()
		if err != nil {
			return err
		}
		m["consistency_level"] = s
	}

	if p.hasSerialCL {
		s, err := p.serial.render()
		if err != nil {
			return err
		}
		m["serial_consistency_level"] = s
	}

	if p.pageSize > 0 {
		m["page_size"] = strconv.Itoa(p.pageSize)
	}

	switch {
	case len(p.queries) == 1:
		m["query"] = p.queries[0]
	case len(p.queries) > 1:
		for i, q := range p.queries {
			m[fmt.Sprintf("query[%d]", i)] = q
		}
	}

	if p.hasTimestamp {
		m["user_timestamp"] = strconv.FormatInt(p.userTimestamp, 10)
	}

	return nil
}
