package main

import (
	"strings"

	"github.com/carbocation/ldannot/ldblocks"
)

// flagSlice collects a flag that may be passed more than once. Each value may
// itself be a comma-delimited list.
type flagSlice []string

func (f *flagSlice) String() string {
	return strings.Join(*f, ",")
}

func (f *flagSlice) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*f = append(*f, v)
		}
	}

	return nil
}

// regionSlice collects -exclude chr:start-end regions.
type regionSlice []ldblocks.Region

func (r *regionSlice) String() string {
	parts := make([]string, 0, len(*r))
	for _, region := range *r {
		parts = append(parts, region.String())
	}

	return strings.Join(parts, ",")
}

func (r *regionSlice) Set(value string) error {
	region, err := ldblocks.ParseRegion(value)
	if err != nil {
		return err
	}
	*r = append(*r, region)

	return nil
}
