package crm

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// The CRM delivers webhooks as application/x-www-form-urlencoded bodies with
// PHP-style bracket keys (leads[status][0][status_id]=142). ParseForm
// reconstructs the nested structure generically, at arbitrary depth, into a
// small tagged variant so the rest of the package never touches raw keys.

// Value is either a String, a List or a Map.
type Value interface{ isValue() }

type String string

type List []Value

type Map map[string]Value

func (String) isValue() {}
func (List) isValue()   {}
func (Map) isValue()    {}

func (m Map) Get(key string) (Value, bool) {
	v, ok := m[key]
	return v, ok
}

// Str unwraps a String value, "" for anything else.
func Str(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	return ""
}

type node struct {
	leaf     string
	children map[string]*node
	nextIdx  int // auto index for empty brackets: a[]=1&a[]=2
}

func newNode() *node { return &node{children: map[string]*node{}} }

// ParseForm decodes a urlencoded body into the variant tree. The root is
// always a Map.
func ParseForm(body string) (Map, error) {
	vals, err := url.ParseQuery(body)
	if err != nil {
		return nil, err
	}

	// deterministic insertion so empty-bracket auto indexes are stable
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := newNode()
	for _, k := range keys {
		for _, v := range vals[k] {
			insert(root, splitKey(k), v)
		}
	}

	m, _ := convert(root).(Map)
	if m == nil {
		m = Map{}
	}
	return m, nil
}

// splitKey breaks "leads[status][0][status_id]" into its path segments.
// An empty segment ("[]") means append-at-next-index.
func splitKey(k string) []string {
	i := strings.IndexByte(k, '[')
	if i < 0 {
		return []string{k}
	}
	segs := []string{k[:i]}
	rest := k[i:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			// junk after a closed bracket; keep it literal
			segs = append(segs, rest)
			break
		}
		j := strings.IndexByte(rest, ']')
		if j < 0 {
			segs = append(segs, rest[1:])
			break
		}
		segs = append(segs, rest[1:j])
		rest = rest[j+1:]
	}
	return segs
}

func insert(n *node, segs []string, value string) {
	for _, seg := range segs {
		if seg == "" {
			seg = strconv.Itoa(n.nextIdx)
			n.nextIdx++
		}
		child, ok := n.children[seg]
		if !ok {
			child = newNode()
			n.children[seg] = child
		}
		n = child
	}
	n.leaf = value
}

func convert(n *node) Value {
	if len(n.children) == 0 {
		return String(n.leaf)
	}

	// all-numeric keys make a list, anything else a map
	idx := make([]int, 0, len(n.children))
	numeric := true
	for k := range n.children {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			numeric = false
			break
		}
		idx = append(idx, i)
	}

	if numeric {
		sort.Ints(idx)
		out := make(List, 0, len(idx))
		for _, i := range idx {
			out = append(out, convert(n.children[strconv.Itoa(i)]))
		}
		return out
	}

	out := make(Map, len(n.children))
	for k, c := range n.children {
		out[k] = convert(c)
	}
	return out
}
