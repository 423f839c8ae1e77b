package dsn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/db/dsn"
)

func TestCreate(t *testing.T) {
	testCases := []struct {
		name string
		cfg  config.DB
		want string
	}{
		{
			name: "mysql",
			cfg: config.DB{
				Engine: config.EngineMySQL, User: "u", Password: "p", Host: "h", Port: 3306, Name: "n",
				Extras: "parseTime=True",
			},
			want: "u:p@tcp(h:3306)/n?parseTime=True",
		},
		{
			name: "mysql without extras",
			cfg:  config.DB{Engine: config.EngineMySQL, User: "u", Password: "p", Host: "h", Port: 3306, Name: "n"},
			want: "u:p@tcp(h:3306)/n",
		},
		{
			name: "postgres",
			cfg: config.DB{
				Engine: config.EnginePostgres, User: "u", Password: "p", Host: "h", Port: 5432, Name: "n",
				Extras: "sslmode=disable",
			},
			want: "host=h port=5432 user=u password=p dbname=n sslmode=disable",
		},
		{
			name: "sqlite",
			cfg:  config.DB{Engine: config.EngineSQLite, Path: "perm.db", Extras: "_pragma=foreign_keys(1)"},
			want: "perm.db?_pragma=foreign_keys(1)",
		},
		{
			name: "sqlite memory",
			cfg:  config.DB{Engine: config.EngineSQLite, Path: ":memory:"},
			want: ":memory:",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dsn.Create(tc.cfg))
		})
	}
}
