package mi

import (
	"sort"
	"strings"

	"github.com/tidwall/sjson"
)

// JSON renders the record as a JSON document of the form
// {"class":"done","results":{...}}. Tuples become objects, value lists become
// arrays and result lists become arrays of single-key objects. A repeated
// top-level name keeps its last value.
func (r *Record) JSON() string {
	doc, _ := sjson.Set(`{}`, "class", r.Class.String())
	doc, _ = sjson.SetRaw(doc, "results", resultsJSON(r.Results))
	return doc
}

// JSON renders the async record like Record.JSON, with its free class name
// and a "kind" of notify or status.
func (a *AsyncRecord) JSON() string {
	doc, _ := sjson.Set(`{}`, "kind", a.Kind.String())
	doc, _ = sjson.Set(doc, "class", a.Class)
	doc, _ = sjson.SetRaw(doc, "results", resultsJSON(a.Results))
	return doc
}

// ValueJSON renders a single value.
func ValueJSON(v Value) string {
	doc := setValue(`{}`, "v", v)
	i := strings.Index(doc, ":")
	return doc[i+1 : len(doc)-1]
}

func resultsJSON(results []Result) string {
	obj := `{}`
	for _, res := range results {
		obj = setValue(obj, escapePath(res.Name), res.Value)
	}
	return obj
}

func setValue(doc, path string, v Value) string {
	switch v := v.(type) {
	case Const:
		doc, _ = sjson.Set(doc, path, string(v))
	case Tuple:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		obj := `{}`
		for _, name := range names {
			obj = setValue(obj, escapePath(name), v[name])
		}
		doc, _ = sjson.SetRaw(doc, path, obj)
	case *List:
		arr := `[]`
		for _, item := range v.Values {
			arr = setValue(arr, "-1", item)
		}
		for _, res := range v.Results {
			arr, _ = sjson.SetRaw(arr, "-1", setValue(`{}`, escapePath(res.Name), res.Value))
		}
		doc, _ = sjson.SetRaw(doc, path, arr)
	}
	return doc
}

// escapePath protects characters that sjson treats as path syntax.
func escapePath(name string) string {
	if !strings.ContainsAny(name, `.*?|#@!=<>%\`) {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(`.*?|#@!=<>%\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
