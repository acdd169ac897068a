package sqlstore

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"

	"github.com/softkave/fimidx-sub001/internal/querysql"
)

// driverName is go-sqlite3 with the functions compiled queries rely on.
const driverName = "sqlite3_objstore"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(querysql.FoldFunc, fold, true)
		},
	})
}

// fold applies Unicode case folding to text and maps everything else to
// NULL. A Caser is not safe for concurrent use, so each call makes one.
func fold(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return cases.Fold().String(s)
}
