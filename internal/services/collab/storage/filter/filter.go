// Package filter translates AIP-160 post filters into SQL conditions.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// PostDeclarations returns the fields a post listing may filter on.
func PostDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("kind", filtering.TypeString),
		filtering.DeclareIdent("category", filtering.TypeString),
		filtering.DeclareIdent("owner_user_id", filtering.TypeString),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// Condition is a SQL WHERE fragment with positional parameters.
type Condition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition constrains nothing.
func (c Condition) Empty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

var columns = map[string]string{
	"kind":          "p.kind",
	"category":      "p.category",
	"owner_user_id": "p.owner_user_id",
	"created_at":    "p.created_at",
}

// filterRequest adapts a raw filter string to filtering.Request.
type filterRequest string

func (r filterRequest) GetFilter() string { return string(r) }

// ParsePostFilter parses filterStr. An empty filter yields an empty condition.
func ParsePostFilter(filterStr string) (Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Condition{}, nil
	}

	decls, err := PostDeclarations()
	if err != nil {
		return Condition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilter(filterRequest(filterStr), decls)
	if err != nil {
		return Condition{}, fmt.Errorf("parse filter: %w", err)
	}
	return translate(parsed.CheckedExpr.GetExpr())
}

func translate(e *expr.Expr) (Condition, error) {
	if e == nil {
		return Condition{}, nil
	}
	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok {
		return Condition{}, fmt.Errorf("unsupported expression type: %T", e.GetExprKind())
	}

	switch fn := call.CallExpr.GetFunction(); fn {
	case filtering.FunctionAnd, "_&&_":
		return join(call.CallExpr.GetArgs(), "AND")
	case filtering.FunctionOr, "_||_":
		return join(call.CallExpr.GetArgs(), "OR")
	case filtering.FunctionNot, "!_":
		if len(call.CallExpr.GetArgs()) != 1 {
			return Condition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translate(call.CallExpr.GetArgs()[0])
		if err != nil {
			return Condition{}, err
		}
		return Condition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	case filtering.FunctionEquals, "_==_":
		return compare(call.CallExpr.GetArgs(), "=")
	case filtering.FunctionNotEquals, "_!=_":
		return compare(call.CallExpr.GetArgs(), "!=")
	case filtering.FunctionLessThan, "_<_":
		return compare(call.CallExpr.GetArgs(), "<")
	case filtering.FunctionLessEquals, "_<=_":
		return compare(call.CallExpr.GetArgs(), "<=")
	case filtering.FunctionGreaterThan, "_>_":
		return compare(call.CallExpr.GetArgs(), ">")
	case filtering.FunctionGreaterEquals, "_>=_":
		return compare(call.CallExpr.GetArgs(), ">=")
	default:
		return Condition{}, fmt.Errorf("unsupported function: %s", fn)
	}
}

func join(args []*expr.Expr, op string) (Condition, error) {
	if len(args) < 2 {
		return Condition{}, fmt.Errorf("%s requires at least 2 arguments", op)
	}
	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		part, err := translate(arg)
		if err != nil {
			return Condition{}, err
		}
		clauses = append(clauses, part.Clause)
		params = append(params, part.Params...)
	}
	return Condition{
		Clause: "(" + strings.Join(clauses, " "+op+" ") + ")",
		Params: params,
	}, nil
}

func compare(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return Condition{}, fmt.Errorf("expected identifier, got %T", args[0].GetExprKind())
	}
	field := ident.IdentExpr.GetName()
	column, ok := columns[field]
	if !ok {
		return Condition{}, fmt.Errorf("unknown field: %s", field)
	}

	var (
		value any
		err   error
	)
	if field == "created_at" {
		value, err = timestampMillis(args[1])
	} else {
		value, err = stringValue(args[1])
	}
	if err != nil {
		return Condition{}, fmt.Errorf("%s: %w", field, err)
	}
	return Condition{Clause: fmt.Sprintf("%s %s ?", column, op), Params: []any{value}}, nil
}

func stringValue(e *expr.Expr) (string, error) {
	constant, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return "", fmt.Errorf("expected constant, got %T", e.GetExprKind())
	}
	str, ok := constant.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return "", fmt.Errorf("expected string constant")
	}
	return str.StringValue, nil
}

// timestampMillis reads timestamp("RFC3339") and returns Unix milliseconds,
// the storage representation of post times.
func timestampMillis(e *expr.Expr) (int64, error) {
	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok || call.CallExpr.GetFunction() != filtering.FunctionTimestamp || len(call.CallExpr.GetArgs()) != 1 {
		return 0, fmt.Errorf("expected timestamp(\"...\")")
	}
	raw, err := stringValue(call.CallExpr.GetArgs()[0])
	if err != nil {
		return 0, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp format: %s", raw)
	}
	return t.UTC().UnixMilli(), nil
}
