// Package organ maps lesion file names to the organ they belong to.
package organ

import (
	"path/filepath"
	"strings"
)

// TumorSuffix marks a lesion mask file
const TumorSuffix = "_tumor.nii.gz"

// Category is an organ with a lesion mask convention
type Category int

const (
	Unknown Category = iota
	Liver
	Pancreas
	Kidney
)

// Categories lists the known organs in match order
var Categories = []Category{Liver, Pancreas, Kidney}

func (c Category) String() string {
	switch c {
	case Liver:
		return "liver"
	case Pancreas:
		return "pancreas"
	case Kidney:
		return "kidney"
	default:
		return "unknown"
	}
}

// OrganFile returns the file name of the organ mask stored next to the
// lesion mask, or "" for Unknown.
func (c Category) OrganFile() string {
	if c == Unknown {
		return ""
	}
	return c.String() + ".nii.gz"
}

// Classify returns the organ whose "<organ>_tumor" marker appears in the
// base name of identifier. Only the name is inspected; nothing is read
// from disk.
func Classify(identifier string) Category {
	name := filepath.Base(identifier)
	for _, c := range Categories {
		if strings.Contains(name, c.String()+"_tumor") {
			return c
		}
	}
	return Unknown
}

// IsTumorFile reports whether name follows the lesion mask convention
func IsTumorFile(name string) bool {
	return strings.HasSuffix(filepath.Base(name), TumorSuffix)
}
