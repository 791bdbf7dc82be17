package ruledsl

import (
	"fmt"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/pkg/types"
)

// maxVarDepth bounds {"var": name} expansion so a Play with a cyclic
// variable reference fails at compile time instead of recursing forever.
const maxVarDepth = 32

// CompileCondition normalizes one condition tree — in shorthand list form
// (`[lhs, op, rhs, extra?]`) or dict form (`{all: [...]}`, `{gt: [...]}`,
// `{var: name}`, ...) — into the internal/ruledsl tagged variant tree.
// vars resolves `{"var": name}` references against the Play's declared
// variables; bind resolves a leaf operand's declared timeframe back to
// the exec/mid/high role it was bound to.
func CompileCondition(raw interface{}, known map[string]bool, vars map[string]interface{}, bind types.TimeframeBinding) (Node, error) {
	return compileCondition(raw, known, vars, bind, nil)
}

func compileCondition(raw interface{}, known map[string]bool, vars map[string]interface{}, bind types.TimeframeBinding, visiting []string) (Node, error) {
	switch v := raw.(type) {
	case []interface{}:
		return compileShorthand(v, known, vars, bind, visiting)
	case map[string]interface{}:
		return compileDict(v, known, vars, bind, visiting)
	case nil:
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "condition must not be empty")
	default:
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("condition must be a list or object, got %T", raw))
	}
}

// compileShorthand canonicalizes `[lhs, op, rhs(, extra)]` into the same
// dict shape compileDict understands, per spec.md §4.5.
func compileShorthand(list []interface{}, known map[string]bool, vars map[string]interface{}, bind types.TimeframeBinding, visiting []string) (Node, error) {
	if len(list) < 3 || len(list) > 4 {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("shorthand condition must have 3 or 4 elements, got %d", len(list)))
	}
	op, ok := list[1].(string)
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "shorthand condition's second element (the operator) must be a string")
	}
	lhs := list[0]
	rhs := list[2]
	switch op {
	case "gt", "lt", "gte", "lte", "eq", "cross_above", "cross_below":
		if len(list) != 3 {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("%q takes exactly lhs, op, rhs", op))
		}
		return compileDict(map[string]interface{}{op: []interface{}{lhs, rhs}}, known, vars, bind, visiting)
	case "between":
		bounds, ok := rhs.([]interface{})
		if !ok || len(bounds) != 2 {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "between's rhs must be a [low, high] list")
		}
		return compileDict(map[string]interface{}{op: []interface{}{lhs, bounds[0], bounds[1]}}, known, vars, bind, visiting)
	case "in":
		set, ok := rhs.([]interface{})
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "in's rhs must be a list")
		}
		return compileDict(map[string]interface{}{op: []interface{}{lhs, set}}, known, vars, bind, visiting)
	case "near_abs", "near_pct":
		if len(list) != 4 {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("%q takes lhs, op, target, tolerance", op))
		}
		return compileDict(map[string]interface{}{op: []interface{}{lhs, rhs, list[3]}}, known, vars, bind, visiting)
	default:
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("unknown operator %q", op))
	}
}

func compileDict(m map[string]interface{}, known map[string]bool, vars map[string]interface{}, bind types.TimeframeBinding, visiting []string) (Node, error) {
	if len(m) != 1 {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("condition object must have exactly one key, got %d", len(m)))
	}
	var key string
	var val interface{}
	for k, v := range m {
		key, val = k, v
	}

	switch key {
	case "var":
		name, ok := val.(string)
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "var must name a string variable")
		}
		return compileVar(name, known, vars, bind, visiting)
	case "all", "any":
		items, ok := val.([]interface{})
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("%q requires a list of conditions", key))
		}
		children := make([]Node, 0, len(items))
		for _, it := range items {
			n, err := compileCondition(it, known, vars, bind, visiting)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		if key == "all" {
			return All{Children: children}, nil
		}
		return Any{Children: children}, nil
	case "not":
		n, err := compileCondition(val, known, vars, bind, visiting)
		if err != nil {
			return nil, err
		}
		return Not{Child: n}, nil
	case "gt", "lt", "gte", "lte", "eq":
		pair, err := pairOf(key, val, 2)
		if err != nil {
			return nil, err
		}
		lhs, err := compileOperand(pair[0], known, bind)
		if err != nil {
			return nil, err
		}
		rhs, err := compileOperand(pair[1], known, bind)
		if err != nil {
			return nil, err
		}
		return Cmp{Op: CmpOp(key), LHS: lhs, RHS: rhs}, nil
	case "cross_above", "cross_below":
		pair, err := pairOf(key, val, 2)
		if err != nil {
			return nil, err
		}
		lhs, err := compileOperand(pair[0], known, bind)
		if err != nil {
			return nil, err
		}
		rhs, err := compileOperand(pair[1], known, bind)
		if err != nil {
			return nil, err
		}
		return Cross{Kind: CrossKind(key), LHS: lhs, RHS: rhs}, nil
	case "between":
		triple, err := pairOf(key, val, 3)
		if err != nil {
			return nil, err
		}
		value, err := compileOperand(triple[0], known, bind)
		if err != nil {
			return nil, err
		}
		lo, err := compileOperand(triple[1], known, bind)
		if err != nil {
			return nil, err
		}
		hi, err := compileOperand(triple[2], known, bind)
		if err != nil {
			return nil, err
		}
		return Between{Value: value, Low: lo, High: hi}, nil
	case "near_abs", "near_pct":
		triple, err := pairOf(key, val, 3)
		if err != nil {
			return nil, err
		}
		value, err := compileOperand(triple[0], known, bind)
		if err != nil {
			return nil, err
		}
		target, err := compileOperand(triple[1], known, bind)
		if err != nil {
			return nil, err
		}
		tol, ok := toFloat(triple[2])
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("%q tolerance must be numeric", key))
		}
		mode := NearAbs
		if key == "near_pct" {
			mode = NearPct
			tol = tol / 100 // the one, single normalization of a percent literal
		}
		return Near{Mode: mode, Value: value, Target: target, Tol: tol}, nil
	case "in":
		pair, err := pairOf(key, val, 2)
		if err != nil {
			return nil, err
		}
		value, err := compileOperand(pair[0], known, bind)
		if err != nil {
			return nil, err
		}
		set, ok := pair[1].([]interface{})
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "in's set must be a list")
		}
		members := make([]Node, len(set))
		for i, it := range set {
			n, err := compileOperand(it, known, bind)
			if err != nil {
				return nil, err
			}
			members[i] = n
		}
		return In{Value: value, Set: members}, nil
	case "holds_for", "occurred_within", "count_true":
		return compileWindowBars(WindowMode(key), val, known, vars, bind, visiting)
	case "holds_for_duration", "occurred_within_duration", "count_true_duration":
		return compileWindowDuration(key, val, known, vars, bind, visiting)
	default:
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("unknown operator %q", key))
	}
}

// compileVar expands a {"var": name} reference into the variable's own
// compiled condition tree, rejecting unknown names and cyclic references.
func compileVar(name string, known map[string]bool, vars map[string]interface{}, bind types.TimeframeBinding, visiting []string) (Node, error) {
	if len(visiting) >= maxVarDepth {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("variable reference depth exceeds %d, likely a cycle", maxVarDepth))
	}
	for _, v := range visiting {
		if v == name {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("cyclic variable reference: %q", name))
		}
	}
	raw, ok := vars[name]
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("undeclared variable %q", name))
	}
	return compileCondition(raw, known, vars, bind, append(visiting, name))
}

// windowParams is the dict shape a bar- or duration-window operator's
// value decodes into: {bars|duration, anchor_tf?, min_true?, expr}.
type windowParams struct {
	Bars     int
	Duration string
	AnchorTF string
	MinTrue  int
	Expr     interface{}
}

func parseWindowParams(val interface{}) (windowParams, error) {
	m, ok := val.(map[string]interface{})
	if !ok {
		return windowParams{}, bterrors.New(bterrors.KindSchema, "ruledsl", "window operator requires an object value")
	}
	var p windowParams
	if b, ok := m["bars"]; ok {
		f, ok := toFloat(b)
		if !ok {
			return windowParams{}, bterrors.New(bterrors.KindSchema, "ruledsl", "window bars must be numeric")
		}
		p.Bars = int(f)
	}
	if d, ok := m["duration"]; ok {
		s, ok := d.(string)
		if !ok {
			return windowParams{}, bterrors.New(bterrors.KindSchema, "ruledsl", "window duration must be a string")
		}
		p.Duration = s
	}
	if a, ok := m["anchor_tf"]; ok {
		s, ok := a.(string)
		if !ok {
			return windowParams{}, bterrors.New(bterrors.KindSchema, "ruledsl", "anchor_tf must be a string")
		}
		p.AnchorTF = s
	}
	if mt, ok := m["min_true"]; ok {
		f, ok := toFloat(mt)
		if !ok {
			return windowParams{}, bterrors.New(bterrors.KindSchema, "ruledsl", "min_true must be numeric")
		}
		p.MinTrue = int(f)
	}
	expr, ok := m["expr"]
	if !ok {
		return windowParams{}, bterrors.New(bterrors.KindSchema, "ruledsl", "window operator requires an expr")
	}
	p.Expr = expr
	return p, nil
}

func compileWindowBars(mode WindowMode, val interface{}, known map[string]bool, vars map[string]interface{}, bind types.TimeframeBinding, visiting []string) (Node, error) {
	p, err := parseWindowParams(val)
	if err != nil {
		return nil, err
	}
	if p.Bars < 1 {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "window bars must be >= 1")
	}
	if p.Bars > maxWindowBars {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("window bars %d exceeds cap %d", p.Bars, maxWindowBars))
	}
	if mode == WindowCountTrue && p.MinTrue < 1 {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "count_true requires min_true >= 1")
	}
	if p.AnchorTF != "" {
		if _, err := roleFromTimeframe(types.Timeframe(p.AnchorTF), bind); err != nil {
			return nil, err
		}
		// anchor_tf beyond exec is validated but not yet evaluated on its
		// own TF; see internal/ruledsl's WindowBars doc comment.
	}
	expr, err := compileCondition(p.Expr, known, vars, bind, visiting)
	if err != nil {
		return nil, err
	}
	return WindowBars{Bars: p.Bars, Mode: mode, MinTrue: p.MinTrue, Expr: expr}, nil
}

func compileWindowDuration(key string, val interface{}, known map[string]bool, vars map[string]interface{}, bind types.TimeframeBinding, visiting []string) (Node, error) {
	var mode WindowMode
	switch key {
	case "holds_for_duration":
		mode = WindowHoldsFor
	case "occurred_within_duration":
		mode = WindowOccurredWithin
	case "count_true_duration":
		mode = WindowCountTrue
	}
	p, err := parseWindowParams(val)
	if err != nil {
		return nil, err
	}
	if p.Duration == "" {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("%q requires a duration", key))
	}
	durMs, err := parseDurationMs(p.Duration)
	if err != nil {
		return nil, err
	}
	if mode == WindowCountTrue && p.MinTrue < 1 {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "count_true_duration requires min_true >= 1")
	}
	if !bind.Exec.Valid() {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "duration windows require a valid exec timeframe")
	}
	expr, err := compileCondition(p.Expr, known, vars, bind, visiting)
	if err != nil {
		return nil, err
	}
	return WindowDuration{DurationMs: durMs, ExecTFMs: bind.Exec.Millis(), Mode: mode, MinTrue: p.MinTrue, Expr: expr}, nil
}

// parseDurationMs parses a duration string of the form "<n><unit>" with
// unit one of m (minutes), h (hours), d (days) — the same units the
// canonical Timeframe strings use, so a Play author never has to reach
// for a different notation than the one features already use.
func parseDurationMs(s string) (int64, error) {
	if len(s) < 2 {
		return 0, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("invalid duration %q", s))
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]
	var n int64
	if _, err := fmt.Sscanf(numPart, "%d", &n); err != nil || n <= 0 {
		return 0, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("invalid duration %q", s))
	}
	switch unit {
	case 'm':
		return n * 60_000, nil
	case 'h':
		return n * 60 * 60_000, nil
	case 'd':
		return n * 24 * 60 * 60_000, nil
	default:
		return 0, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("invalid duration unit in %q", s))
	}
}

func pairOf(op string, val interface{}, n int) ([]interface{}, error) {
	list, ok := val.([]interface{})
	if !ok || len(list) != n {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("%q requires exactly %d operands", op, n))
	}
	return list, nil
}

// compileOperand resolves one expression operand: a literal, a bare
// string naming a declared feature or already-qualified path, or an
// object form {feature|structure|builtin|price: ..., field?, offset?,
// tf?} per spec.md §4.5.
func compileOperand(raw interface{}, known map[string]bool, bind types.TimeframeBinding) (Node, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return compileOperandObject(v, known, bind)
	case string:
		return compileOperandString(v, known, bind, types.RoleExec)
	case float64:
		return Literal{Value: NumValue(v)}, nil
	case int:
		return Literal{Value: NumValue(float64(v))}, nil
	case bool:
		return Literal{Value: BoolValue(v)}, nil
	case []interface{}:
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "a plain list is not a valid operand outside in()/between()")
	default:
		return Literal{Value: StrValue(fmt.Sprintf("%v", v))}, nil
	}
}

func compileOperandString(s string, known map[string]bool, bind types.TimeframeBinding, defaultRole types.TimeframeRole) (Node, error) {
	if isBuiltinOrPricePath(s) {
		return Operand{Path: pathWithRole(s, types.RoleExec)}, nil
	}
	if known != nil && !known[s] {
		return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("undeclared feature %q", s))
	}
	return Operand{Path: pathWithRole(featurePath(s), defaultRole)}, nil
}

func compileOperandObject(m map[string]interface{}, known map[string]bool, bind types.TimeframeBinding) (Node, error) {
	offset := 0
	if o, ok := m["offset"]; ok {
		f, ok := toFloat(o)
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "offset must be numeric")
		}
		offset = int(f)
	}
	role := types.RoleExec
	if tf, ok := m["tf"]; ok {
		s, ok := tf.(string)
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "tf must be a string")
		}
		r, err := roleFromTimeframe(types.Timeframe(s), bind)
		if err != nil {
			return nil, err
		}
		role = r
	}
	if b, ok := m["builtin"]; ok {
		name, ok := b.(string)
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "builtin must be a string")
		}
		return Operand{Path: "builtin." + name, Offset: offset}, nil
	}
	if p, ok := m["price"]; ok {
		name, ok := p.(string)
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "price must be a string")
		}
		return Operand{Path: "price." + string(role) + "." + name, Offset: offset}, nil
	}
	if f, ok := m["feature"]; ok {
		key, ok := f.(string)
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "feature must be a string")
		}
		if known != nil && !known[key] {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("undeclared feature %q", key))
		}
		return Operand{Path: "indicator." + string(role) + "." + key, Offset: offset}, nil
	}
	if s, ok := m["structure"]; ok {
		key, ok := s.(string)
		if !ok {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "structure must be a string")
		}
		if known != nil && !known[key] {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("undeclared feature %q", key))
		}
		field, _ := m["field"].(string)
		if field == "" {
			return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "structure operand requires a field")
		}
		return Operand{Path: "structure." + string(role) + "." + key + "." + field, Offset: offset}, nil
	}
	return nil, bterrors.New(bterrors.KindSchema, "ruledsl", "operand object must set one of feature/structure/builtin/price")
}

// roleFromTimeframe resolves a declared Timeframe against the Play's
// TimeframeBinding. An empty Timeframe (the common single-timeframe Play)
// defaults to exec. A Timeframe that matches none of the binding's
// exec/mid/high slots is a schema error: the Play never bound a role to
// it, so no feature could have been computed there.
func roleFromTimeframe(tf types.Timeframe, bind types.TimeframeBinding) (types.TimeframeRole, error) {
	if tf == "" {
		return types.RoleExec, nil
	}
	if tf == bind.Exec {
		return types.RoleExec, nil
	}
	if bind.Mid != "" && tf == bind.Mid {
		return types.RoleMid, nil
	}
	if bind.High != "" && tf == bind.High {
		return types.RoleHigh, nil
	}
	return "", bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("timeframe %q is not bound to any role in this play", tf))
}

func featurePath(indicator string) string {
	if isBuiltinOrPricePath(indicator) {
		return indicator
	}
	return "indicator." + indicator
}

func isBuiltinOrPricePath(s string) bool {
	for _, prefix := range []string{"builtin.", "price.", "indicator.", "structure."} {
		if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func pathWithRole(path string, role types.TimeframeRole) string {
	if len(path) >= 8 && path[:8] == "builtin." {
		return path
	}
	// path is "indicator.<key>" or "price.<field>" or already role-qualified.
	for _, prefix := range []string{"indicator.", "price.", "structure."} {
		if len(path) > len(prefix) && path[:len(prefix)] == prefix {
			rest := path[len(prefix):]
			return prefix + string(role) + "." + rest
		}
	}
	return path
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
