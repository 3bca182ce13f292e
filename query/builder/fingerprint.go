package builder

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

const fingerprintDomain = "salesreport/query/v1"

// Fingerprint derives the cache key of a rendered query. Values are encoded
// with their type so that 1 and "1" hash differently.
func Fingerprint(dialect sqlgen.Dialect, sqlText string, args []interface{}) query.Fingerprint {
	h := sha256.New()
	writeField := func(s string) {
		var n [binary.MaxVarintLen64]byte
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(s)))])
		h.Write([]byte(s))
	}
	writeField(fingerprintDomain)
	writeField(string(dialect))
	writeField(sqlText)
	for _, arg := range args {
		writeField(encodeValue(arg))
	}
	return query.Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// encodeValue returns a type-tagged canonical text form of a bound value.
func encodeValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + val
	case []byte:
		return "x:" + hex.EncodeToString(val)
	case bool:
		return "b:" + strconv.FormatBool(val)
	case int:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int8:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int16:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int32:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int64:
		return "i:" + strconv.FormatInt(val, 10)
	case uint:
		return "u:" + strconv.FormatUint(uint64(val), 10)
	case uint32:
		return "u:" + strconv.FormatUint(uint64(val), 10)
	case uint64:
		return "u:" + strconv.FormatUint(val, 10)
	case float32:
		return "f:" + strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return "t:" + val.UTC().Format(time.RFC3339Nano)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = strconv.Quote(encodeValue(item))
		}
		return "l:[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

// canonical returns a copy of stmt with its AND-joined predicates sorted.
func canonical(stmt *sqlgen.Statement) *sqlgen.Statement {
	cp := stmt.Clone()
	sortConditions(cp.Where)
	sortConditions(cp.Having)
	return cp
}

func sortConditions(conds []sqlgen.Condition) {
	sort.SliceStable(conds, func(i, j int) bool {
		a, b := conds[i], conds[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Operator != b.Operator {
			return a.Operator < b.Operator
		}
		return encodeValue(a.Value) < encodeValue(b.Value)
	})
}
