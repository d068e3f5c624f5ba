package places

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/geodb-places/internal/geodb"
)

const geometryColumn = "geometry"

// time column names recognized in a collection schema, in preference order
var schemaTimeAliases = []string{"time", "date", "datetime", "date-time", "timestamp"}

// SchemaFetcher returns the schema of a geoDB collection.
type SchemaFetcher interface {
	GetCollectionInfo(ctx context.Context, collection, database string) (geodb.CollectionInfo, error)
}

// Query is a geoDB request derived from a descriptor query string.
type Query struct {
	Database    string
	Collection  string
	Constraints string
}

func (q Query) String() string {
	return q.Database + "_" + q.Collection + "?" + q.Constraints
}

// ParseQuery splits "<db>_<collection>?<constraints>". The collection part may
// itself contain underscores.
func ParseQuery(raw string) (Query, error) {
	name, constraints, ok := strings.Cut(strings.TrimSpace(raw), "?")
	if !ok {
		return Query{}, &ConfigError{Err: fmt.Errorf("%w: missing '?' in %q", ErrMalformedQuery, raw)}
	}
	db, coll, ok := strings.Cut(name, "_")
	if !ok || db == "" || coll == "" {
		return Query{}, &ConfigError{Err: fmt.Errorf("%w: bad collection name %q", ErrMalformedQuery, name)}
	}
	return Query{Database: db, Collection: coll, Constraints: constraints}, nil
}

// BuildQuery parses raw and makes sure the request selects the geometry column
// and, when the collection has one, a time column. The schema is only fetched
// when the constraints reference no time column.
func BuildQuery(ctx context.Context, raw string, schema SchemaFetcher) (Query, error) {
	q, err := ParseQuery(raw)
	if err != nil {
		return Query{}, err
	}

	refs := constraintRefs(q.Constraints)
	if _, ok := refs[geometryColumn]; !ok {
		if q.Constraints, err = appendSelect(q.Constraints, geometryColumn); err != nil {
			return Query{}, err
		}
	}

	for _, a := range schemaTimeAliases {
		if _, ok := refs[a]; ok {
			return q, nil
		}
	}

	info, err := schema.GetCollectionInfo(ctx, q.Collection, q.Database)
	if err != nil {
		return Query{}, fmt.Errorf("collection info %s_%s: %w", q.Database, q.Collection, err)
	}
	if alias := schemaTimeAlias(info); alias != "" {
		if q.Constraints, err = appendSelect(q.Constraints, alias); err != nil {
			return Query{}, err
		}
	}
	return q, nil
}

func schemaTimeAlias(info geodb.CollectionInfo) string {
	for _, a := range schemaTimeAliases {
		if info.HasProperty(a) {
			return a
		}
	}
	return ""
}

// constraintRefs collects the identifiers used in a PostgREST constraint
// string, e.g. "select=a,b&c=gt.1" -> {select,a,b,c,gt,1}.
func constraintRefs(constraints string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.FieldsFunc(constraints, func(r rune) bool {
		switch r {
		case '&', '=', ',', '(', ')', '.', ' ':
			return true
		}
		return false
	}) {
		out[tok] = struct{}{}
	}
	return out
}

// appendSelect adds col to the end of the select= clause.
func appendSelect(constraints, col string) (string, error) {
	clauses := strings.Split(constraints, "&")
	for i, c := range clauses {
		cols, ok := strings.CutPrefix(c, "select=")
		if !ok {
			continue
		}
		if cols == "" {
			clauses[i] = "select=" + col
		} else {
			clauses[i] = "select=" + cols + "," + col
		}
		return strings.Join(clauses, "&"), nil
	}
	return "", &ConfigError{Err: fmt.Errorf("%w: cannot add %q to %q", ErrNoSelectClause, col, constraints)}
}
