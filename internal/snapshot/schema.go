// Package snapshot converts the NHTSA tab-delimited complaint extract into the
// columnar file the service reads at startup.
package snapshot

import "strings"

// FlatColumns is the column layout of the NHTSA FLAT_CMPL extract. The file has no header.
var FlatColumns = []string{
	"CMPLID", "ODINO", "MFR_NAME", "MAKETXT", "MODELTXT", "YEARTXT",
	"CRASH", "FAILDATE", "FIRE", "INJURED", "DEATHS", "COMPDESC",
	"CITY", "STATE", "VIN", "DATEA", "LDATE", "MILES", "OCCURENCES",
	"CDESCR", "CMPL_TYPE", "POLICE_RPT_YN", "PURCH_DT",
	"ORIG_OWNER_YN", "ANTI_BRAKES_YN", "CRUISE_CONT_YN", "NUM_CYLS",
	"DRIVE_TRAIN", "FUEL_SYS", "FUEL_TYPE", "TRANS_TYPE",
	"VEH_SPEED", "DOT", "TIRE_SIZE", "LOC_OF_TIRE",
	"TIRE_FAIL_TYPE", "ORIG_EQUIP_YN", "MANUF_DT", "SEAT_TYPE",
	"RESTRAINT_TYPE", "DEALER_NAME", "DEALER_TEL",
	"DEALER_CITY", "DEALER_STATE", "DEALER_ZIP",
	"PROD_TYPE", "REPAIRED_YN", "MEDICAL_ATTN",
	"VEHICLES_TOWED_YN",
}

// Row is one complaint in the snapshot. Every column is stored as optional text;
// numeric coercion happens when records are normalized.
type Row struct {
	ODINO    string `parquet:"ODINO,optional"`
	MAKETXT  string `parquet:"MAKETXT,optional"`
	MODELTXT string `parquet:"MODELTXT,optional"`
	YEARTXT  string `parquet:"YEARTXT,optional"`
	COMPDESC string `parquet:"COMPDESC,optional"`
	CDESCR   string `parquet:"CDESCR,optional"`
	STATE    string `parquet:"STATE,optional"`
	CRASH    string `parquet:"CRASH,optional"`
	FIRE     string `parquet:"FIRE,optional"`
	INJURED  string `parquet:"INJURED,optional"`
	DEATHS   string `parquet:"DEATHS,optional"`
	FAILDATE string `parquet:"FAILDATE,optional"`
}

var flatIndex = func() map[string]int {
	m := make(map[string]int, len(FlatColumns))
	for i, c := range FlatColumns {
		m[c] = i
	}
	return m
}()

// rowFromFields keeps the snapshot subset of one flat-file line.
// Make and model are upper-cased so lookups can match exactly.
func rowFromFields(fields []string) Row {
	get := func(name string) string {
		return strings.TrimSpace(fields[flatIndex[name]])
	}
	return Row{
		ODINO:    get("ODINO"),
		MAKETXT:  strings.ToUpper(get("MAKETXT")),
		MODELTXT: strings.ToUpper(get("MODELTXT")),
		YEARTXT:  get("YEARTXT"),
		COMPDESC: get("COMPDESC"),
		CDESCR:   get("CDESCR"),
		STATE:    get("STATE"),
		CRASH:    get("CRASH"),
		FIRE:     get("FIRE"),
		INJURED:  get("INJURED"),
		DEATHS:   get("DEATHS"),
		FAILDATE: get("FAILDATE"),
	}
}
