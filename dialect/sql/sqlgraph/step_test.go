package sqlgraph

import (
	"testing"

	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/dialect/sql"

	"github.com/stretchr/testify/require"
)

func TestStep_WalkO2M(t *testing.T) {
	users := sql.TableOf("users")
	pets := sql.TableOf("pets")
	st := &Step{Rel: O2M, From: users, To: pets, FromColumn: "id", ToColumn: "owner_id"}

	sel := sql.Dialect(dialect.Postgres).Select().From(users)
	st.Walk(sel)
	query, _ := sel.Query()
	require.Equal(t, `SELECT * FROM users JOIN pets ON users.id = pets.owner_id`, query)
}

func TestStep_WalkM2M(t *testing.T) {
	users := sql.TableOf("users")
	groups := sql.TableOf("groups")
	link := sql.TableOf("user_groups")
	st := &Step{
		Rel: M2M, From: users, To: groups, FromColumn: "id", ToColumn: "id",
		Link: link, LinkFromColumn: "user_id", LinkToColumn: "group_id",
	}

	sel := sql.Dialect(dialect.Postgres).Select().From(users)
	st.Walk(sel)
	query, _ := sel.Query()
	require.Equal(t,
		`SELECT * FROM users JOIN user_groups ON users.id = user_groups.user_id JOIN groups ON user_groups.group_id = groups.id`,
		query)
}

func TestStep_LateralAgg(t *testing.T) {
	pets := sql.TableOf("pets")
	st := &Step{Rel: O2M, From: sql.TableOf("users"), To: pets, FromColumn: "id", ToColumn: "owner_id"}

	inner := st.LateralAgg("u", func(s *sql.Selector) { s.Columns("pets.name") })
	query, _ := inner.Query()
	require.Equal(t, `SELECT pets.name FROM pets WHERE pets.owner_id = u.id`, query)
}

func TestAliasCounter(t *testing.T) {
	a := &AliasCounter{}
	require.Equal(t, "t1", a.Next())
	require.Equal(t, "t2", a.Next())
}
