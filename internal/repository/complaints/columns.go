package complaints

import (
	"github.com/parquet-go/parquet-go"

	"github.com/defectscope/defectscope/internal/snapshot"
)

// columns holds leaf indexes of the snapshot columns; -1 means absent.
// Reading by index keeps older snapshots with extra or missing columns loadable.
type columns struct {
	id, make, model, year, component, summary, state, crash, fire, injured, deaths, failDate int
}

func resolveColumns(pf *parquet.File) columns {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		switch path[0] {
		case "ODINO":
			c.id = i
		case "MAKETXT":
			c.make = i
		case "MODELTXT":
			c.model = i
		case "YEARTXT":
			c.year = i
		case "COMPDESC":
			c.component = i
		case "CDESCR":
			c.summary = i
		case "STATE":
			c.state = i
		case "CRASH":
			c.crash = i
		case "FIRE":
			c.fire = i
		case "INJURED":
			c.injured = i
		case "DEATHS":
			c.deaths = i
		case "FAILDATE":
			c.failDate = i
		}
	}
	return c
}

func (c columns) decode(row parquet.Row) snapshot.Row {
	var r snapshot.Row
	for _, v := range row {
		if v.IsNull() {
			continue
		}
		switch v.Column() {
		case c.id:
			r.ODINO = v.String()
		case c.make:
			r.MAKETXT = v.String()
		case c.model:
			r.MODELTXT = v.String()
		case c.year:
			r.YEARTXT = v.String()
		case c.component:
			r.COMPDESC = v.String()
		case c.summary:
			r.CDESCR = v.String()
		case c.state:
			r.STATE = v.String()
		case c.crash:
			r.CRASH = v.String()
		case c.fire:
			r.FIRE = v.String()
		case c.injured:
			r.INJURED = v.String()
		case c.deaths:
			r.DEATHS = v.String()
		case c.failDate:
			r.FAILDATE = v.String()
		}
	}
	return r
}
