package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

// FormatsCmd lists registered formats.
type FormatsCmd struct {
	JSON bool `help:"Print the listing as JSON"`
}

type formatInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases,omitempty"`
	Extensions  []string `json:"extensions,omitempty"`
	MIMEType    string   `json:"mime_type"`
	Read        bool     `json:"read"`
	Write       bool     `json:"write"`
	Binary      bool     `json:"binary,omitempty"`
}

func (c *FormatsCmd) Run(e *env) error {
	var infos []formatInfo
	for _, f := range e.Registry.List() {
		infos = append(infos, formatInfo{
			Name:        f.Name,
			Description: f.Description,
			Aliases:     f.Aliases,
			Extensions:  f.Extensions,
			MIMEType:    f.MIMEType(),
			Read:        f.CanRead(),
			Write:       f.CanWrite(),
			Binary:      f.Binary,
		})
	}

	if c.JSON {
		enc := json.NewEncoder(e.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	tw := tabwriter.NewWriter(e.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODE\tEXTENSIONS\tDESCRIPTION")
	for _, f := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, mode(f.Read, f.Write), strings.Join(f.Extensions, ","), f.Description)
	}
	return tw.Flush()
}

func mode(read, write bool) string {
	switch {
	case read && write:
		return "rw"
	case read:
		return "r-"
	case write:
		return "-w"
	}
	return "--"
}
