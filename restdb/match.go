package restdb

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Avaliação de condições em memória, usada pelos backends que não filtram no
// servidor (memory) ou que precisam ordenar no cliente (DynamoDB).

func matchAll(rec Record, conds []Condition) bool {
	for _, c := range conds {
		if !matchOne(rec, c) {
			return false
		}
	}
	return true
}

func matchOne(rec Record, c Condition) bool {
	v, ok := rec[c.Field]
	if !ok || v == nil {
		// Coluna ausente ou nula só satisfaz Eq(nil)
		return c.Op == Eq && c.Value == nil
	}

	switch c.Op {
	case Eq:
		cmp, ok := compareValues(v, c.Value)
		return ok && cmp == 0
	case Gt, Gte, Lt, Lte:
		cmp, ok := compareValues(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case Gt:
			return cmp > 0
		case Gte:
			return cmp >= 0
		case Lt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case ILike:
		pattern, _ := c.Value.(string)
		return likeMatch(pattern, fmt.Sprint(v))
	case In:
		values, _ := c.Value.([]interface{})
		for _, candidate := range values {
			if cmp, ok := compareValues(v, candidate); ok && cmp == 0 {
				return true
			}
		}
		return false
	}
	return false
}

// compareValues compara dois valores escalares. Números de tipos diferentes
// são comparados como float64; o segundo retorno é false quando os valores
// não são comparáveis.
func compareValues(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			// Ids chegam como string na URL e como número no registro
			return strings.Compare(av, fmt.Sprint(b)), true
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			if s, isStr := b.(string); isStr {
				parsed, err := time.Parse(time.RFC3339Nano, s)
				if err != nil {
					return 0, false
				}
				bv = parsed
			} else {
				return 0, false
			}
		}
		return av.Compare(bv), true
	}

	if bs, ok := b.(string); ok {
		return strings.Compare(fmt.Sprint(a), bs), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		// Strings numéricas comparam como números apenas contra números
		return 0, false
	}
	return 0, false
}

// likeToken é um caractere de um padrão LIKE: literal ou curinga (% ou _).
type likeToken struct {
	r    rune
	wild bool
}

// likeTokens separa curingas de literais; \ torna o próximo caractere literal.
func likeTokens(pattern string) []likeToken {
	runes := []rune(pattern)
	tokens := make([]likeToken, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			i++
			tokens = append(tokens, likeToken{r: runes[i]})
		case r == '%' || r == '_':
			tokens = append(tokens, likeToken{r: r, wild: true})
		default:
			tokens = append(tokens, likeToken{r: r})
		}
	}
	return tokens
}

// likeMatch implementa ILIKE: % casa qualquer sequência e _ um caractere,
// sem diferenciar maiúsculas. \%, \_ e \\ casam o caractere literal.
func likeMatch(pattern, s string) bool {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, t := range likeTokens(pattern) {
		switch {
		case t.wild && t.r == '%':
			b.WriteString(".*")
		case t.wild:
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(t.r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// sortRecords ordena de forma estável; nulos vão para o fim em ordem ascendente.
func sortRecords(records []Record, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, o := range orders {
			a, b := records[i][o.Field], records[j][o.Field]
			if a == nil && b == nil {
				continue
			}
			if a == nil {
				return !o.Ascending
			}
			if b == nil {
				return o.Ascending
			}
			cmp, ok := compareValues(a, b)
			if !ok {
				cmp = strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
			}
			if cmp == 0 {
				continue
			}
			if o.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

// window aplica offset e limit (limit zero = sem limite).
func window(records []Record, limit, offset int) []Record {
	if offset >= len(records) {
		return []Record{}
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// stripWildcards transforma um padrão LIKE no termo literal, para stores que
// só conhecem "contains".
func stripWildcards(pattern string) string {
	tokens := likeTokens(pattern)
	for len(tokens) > 0 && tokens[0].wild && tokens[0].r == '%' {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].wild && tokens[len(tokens)-1].r == '%' {
		tokens = tokens[:len(tokens)-1]
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteRune(t.r)
	}
	return b.String()
}

// postgrestPattern troca os % não escapados por *, que o PostgREST aceita sem
// codificação na URL.
func postgrestPattern(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch {
		case runes[i] == '\\' && i+1 < len(runes):
			b.WriteRune(runes[i])
			i++
			b.WriteRune(runes[i])
		case runes[i] == '%':
			b.WriteByte('*')
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

func formatScalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
