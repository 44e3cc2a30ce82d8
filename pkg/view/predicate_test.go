package view

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/console/pkg/models"
)

func TestPredicates(t *testing.T) {
	web := models.NewRecord("1", map[string]interface{}{"name": "Web-01", "state": "running"})
	db := models.NewRecord("2", map[string]interface{}{"name": "db-01", "state": "stopped"})
	bare := models.NewRecord("3", nil)

	tests := []struct {
		name string
		pred Predicate
		want []bool
	}{
		{"pass all", PassAll, []bool{true, true, true}},
		{"equals", AttrEquals("state", "running"), []bool{true, false, false}},
		{"contains case insensitive", AttrContains("name", "WEB"), []bool{true, false, false}},
		{"contains empty", AttrContains("name", ""), []bool{true, true, true}},
		{"and", And(AttrContains("name", "01"), AttrEquals("state", "stopped")), []bool{false, true, false}},
		{"or", Or(AttrEquals("state", "running"), AttrEquals("state", "stopped")), []bool{true, true, false}},
		{"not", Not(AttrEquals("state", "running")), []bool{false, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []bool{tt.pred(web), tt.pred(db), tt.pred(bare)}
			assert.Equal(t, tt.want, got)
		})
	}
}
