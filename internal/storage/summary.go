package storage

import "github.com/zeusync/glowline/internal/core/selection"

// Summary is a digest of the registry logged when the selection is loaded.
type Summary struct {
	File            string
	OutlinesEnabled bool
	DefaultColor    string
	Items           int
	Entities        int
	Blocks          int
	Total           int
	Warnings        []string
}

func Summarize(file string, r *selection.Registry) Summary {
	st := r.Stats()
	return Summary{
		File:            file,
		OutlinesEnabled: st.OutlinesEnabled,
		DefaultColor:    st.DefaultColor.Hex(),
		Items:           st.Items,
		Entities:        st.Entities,
		Blocks:          st.Blocks,
		Total:           st.Total(),
		Warnings:        r.Warnings(),
	}
}
