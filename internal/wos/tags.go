package wos

import "strings"

// action is what a tag does to the parser state.
type action int

const (
	actField action = iota // update a field of the open record
	actBegin               // PT: start a fresh record
	actEnd                 // ER: finalize the open record
)

// fieldOp applies one line value to the open record. lineTag is the tag
// written on the line itself, blank for continuation lines.
type fieldOp func(r *RawRecord, lineTag, value string)

type tagRule struct {
	action action
	apply  fieldOp
}

// tagTable is the complete set of tags the parser understands.
// Unknown tags are ignored.
var tagTable = map[string]tagRule{
	"PT": {action: actBegin},
	"ER": {action: actEnd},

	"TI": {apply: func(r *RawRecord, _, v string) { r.Title += " " + strings.ToLower(v) }},
	"DI": {apply: func(r *RawRecord, _, v string) { r.DOI += " " + strings.ToLower(v) }},
	"AB": {apply: func(r *RawRecord, _, v string) { r.Abstract += strings.ToLower(v) }},
	"DE": {apply: appendKeywords},
	"ID": {apply: appendKeywords},
	"PD": {apply: func(r *RawRecord, _, v string) { r.PubMonth = v }},
	"PY": {apply: func(r *RawRecord, _, v string) { r.PubYear = v }},
	"DT": {apply: func(r *RawRecord, _, v string) { r.PubType = strings.ToLower(v) }},
	"CR": {apply: appendReference},
	"SC": {apply: func(r *RawRecord, _, v string) { r.Area = v }},
	"WC": {apply: func(r *RawRecord, _, v string) { r.Category = v }},
	"TC": {apply: func(r *RawRecord, _, v string) { r.Cites = v }},
	"RP": {apply: func(r *RawRecord, _, v string) { r.addNations(v) }},
}

// appendKeywords handles author keywords (DE) and Keywords Plus (ID).
// The first ID line is separated from the DE list by "; ".
func appendKeywords(r *RawRecord, lineTag, v string) {
	if lineTag == "ID" {
		r.Keywords += "; "
	}
	r.Keywords += strings.ToLower(v)
}

// appendReference keeps the DOI of a cited reference, if it has one.
//
//	CR Smith J, 2019, NATURE, V1, P2, DOI 10.1038/x
func appendReference(r *RawRecord, _, v string) {
	parts := strings.Split(strings.ReplaceAll(v, ", DOI ", "|"), "|")
	if len(parts) > 1 {
		r.Refs = append(r.Refs, strings.ToLower(parts[len(parts)-1]))
	}
}
