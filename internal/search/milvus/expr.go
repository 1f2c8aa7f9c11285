package milvus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Yates-Labs/memctx/internal/search"
)

// FilterExpr translates a memsearch-style filter into a Milvus boolean
// expression over the chunk schema.
//
//	source starts_with "/repo"  ->  origin like "/repo%"
func FilterExpr(filter string) (string, error) {
	conds, err := search.ParseFilter(filter)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		field, err := schemaField(c)
		if err != nil {
			return "", err
		}

		switch c.Op {
		case search.OpStartsWith:
			parts = append(parts, fmt.Sprintf("%s like %s", field, strconv.Quote(c.Value+"%")))
		case search.OpEquals:
			parts = append(parts, fmt.Sprintf("%s == %s", field, strconv.Quote(c.Value)))
		default:
			return "", fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return strings.Join(parts, " and "), nil
}

func schemaField(c search.Condition) (string, error) {
	if c.IsOrigin() {
		return fieldOrigin, nil
	}
	switch c.Field {
	case fieldName, fieldChunkHash, fieldHeading, fieldContent:
		return c.Field, nil
	}
	return "", fmt.Errorf("unsupported filter field %q", c.Field)
}
