package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edvin/paas/internal/model"
)

func TestRewriteReferences(t *testing.T) {
	mapping := map[string]string{"db": "proj-db", "cache": "proj-cache"}
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"plain", "{{db.DATABASE_URI}}", "{{proj-db.DATABASE_URI}}"},
		{"spaces kept", "{{ db.DATABASE_URI }}", "{{ proj-db.DATABASE_URI }}"},
		{"scheme form", "${{ service:cache.DATABASE_URI }}", "${{ service:proj-cache.DATABASE_URI }}"},
		{"embedded", "host={{db.DATABASE_HOST}}:{{db.DATABASE_PORT}}/x", "host={{proj-db.DATABASE_HOST}}:{{proj-db.DATABASE_PORT}}/x"},
		{"outside set untouched", "{{ other.KEY }}", "{{ other.KEY }}"},
		{"mixed", "{{other.A}}-{{db.B}}", "{{other.A}}-{{proj-db.B}}"},
		{"no references", "plain value", "plain value"},
		{"malformed", "{{db}}", "{{db}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteReferences(tt.value, mapping))
		})
	}
}

func TestReferences(t *testing.T) {
	refs := References("a {{ db.URI }} b ${{ service:cache.URL }} {{ db.PORT }}")
	assert.Equal(t, []Reference{
		{Service: "db", Key: "URI"},
		{Scheme: "service", Service: "cache", Key: "URL"},
		{Service: "db", Key: "PORT"},
	}, refs)
}

func TestResolveReferences(t *testing.T) {
	lookup := func(service, key string) (string, bool) {
		if service == "acme-db" && key == "DATABASE_URI" {
			return "postgres://u:p@acme-db:5432/acme", true
		}
		return "", false
	}

	assert.Equal(t, "postgres://u:p@acme-db:5432/acme", ResolveReferences("{{ acme-db.DATABASE_URI }}", lookup))
	assert.Equal(t, "url=postgres://u:p@acme-db:5432/acme", ResolveReferences("url=${{ service:acme-db.DATABASE_URI }}", lookup))
	assert.Equal(t, "{{ acme-db.MISSING }}", ResolveReferences("{{ acme-db.MISSING }}", lookup))
}

func TestServiceLookup(t *testing.T) {
	services := []model.Service{
		{
			Name: "acme-db",
			Type: model.ServiceTypeDatabase,
			Database: &model.DatabaseDetails{Type: "postgres", Connection: &model.ConnectionInfo{
				URI: "postgres://u:p@dokku-postgres-acme-db:5432/acme_db", Host: "dokku-postgres-acme-db", Port: 5432,
			}},
		},
		{Name: "acme-web", Variables: []model.Variable{{Key: "PORT", Value: "8080"}}},
	}
	vars := ResolveVariables([]model.Variable{
		{Key: "DATABASE_URL", Value: "{{ acme-db.DATABASE_URI }}"},
		{Key: "DB_PORT", Value: "{{acme-db.DATABASE_PORT}}"},
		{Key: "WEB_PORT", Value: "{{acme-web.PORT}}"},
	}, ServiceLookup(services))

	assert.Equal(t, []model.Variable{
		{Key: "DATABASE_URL", Value: "postgres://u:p@dokku-postgres-acme-db:5432/acme_db"},
		{Key: "DB_PORT", Value: "5432"},
		{Key: "WEB_PORT", Value: "8080"},
	}, vars)
}

func TestRewriteVariables_Nil(t *testing.T) {
	assert.Nil(t, RewriteVariables(nil, map[string]string{}))
	assert.Nil(t, ResolveVariables(nil, ServiceLookup(nil)))
}
