package organ

import "testing"

func TestClassify(t *testing.T) {
	testCases := []struct {
		identifier string
		expected   Category
	}{
		{"liver_tumor.nii.gz", Liver},
		{"case_0001_liver_tumor.nii.gz", Liver},
		{"/data/output/case7/pancreas_tumor.nii.gz", Pancreas},
		{"kidney_tumor.nii.gz", Kidney},
		{"lung_tumor.nii.gz", Unknown},
		{"liver.nii.gz", Unknown},
		{"/data/liver_tumor/colon_tumor.nii.gz", Unknown},
		{"", Unknown},
	}

	for _, tc := range testCases {
		if got := Classify(tc.identifier); got != tc.expected {
			t.Errorf("Classify(%q): expected %v, got %v", tc.identifier, tc.expected, got)
		}
	}
}

func TestOrganFile(t *testing.T) {
	testCases := []struct {
		category Category
		expected string
	}{
		{Liver, "liver.nii.gz"},
		{Pancreas, "pancreas.nii.gz"},
		{Kidney, "kidney.nii.gz"},
		{Unknown, ""},
	}

	for _, tc := range testCases {
		if got := tc.category.OrganFile(); got != tc.expected {
			t.Errorf("%v.OrganFile(): expected %q, got %q", tc.category, tc.expected, got)
		}
	}
}

func TestIsTumorFile(t *testing.T) {
	testCases := []struct {
		name     string
		expected bool
	}{
		{"liver_tumor.nii.gz", true},
		{"dir/kidney_tumor.nii.gz", true},
		{"liver_tumor_new.nii.gz", false},
		{"liver_tumor.nii", false},
		{"liver.nii.gz", false},
	}

	for _, tc := range testCases {
		if got := IsTumorFile(tc.name); got != tc.expected {
			t.Errorf("IsTumorFile(%q): expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}
