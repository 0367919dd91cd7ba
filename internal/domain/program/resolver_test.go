package program

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

func TestResolve_CurrentStudents(t *testing.T) {
	tests := []struct {
		name   string
		in     ResolveInput
		want   string
		fails  bool
		reason string
	}{
		{
			name: "2018 francophone school",
			in:   ResolveInput{RequirementYear: "2018", SchoolOfRecord: "09336789"},
			want: "2018-PF",
		},
		{
			name: "2018 regular school",
			in:   ResolveInput{RequirementYear: "2018", SchoolOfRecord: "03636018"},
			want: "2018-EN",
		},
		{
			name: "2004 francophone school",
			in:   ResolveInput{RequirementYear: "2004", SchoolOfRecord: "09312345"},
			want: "2004-PF",
		},
		{
			name: "1996 regular school",
			in:   ResolveInput{RequirementYear: "1996", SchoolOfRecord: "06299222"},
			want: "1996-EN",
		},
		{
			name: "1986 with french dogwood flag",
			in:   ResolveInput{RequirementYear: "1986", SchoolOfRecord: "03636018", FrenchIndicator: "Y"},
			want: "1986-PF",
		},
		{
			name: "1986 without french dogwood flag",
			in:   ResolveInput{RequirementYear: "1986", SchoolOfRecord: "09336789", FrenchIndicator: "N"},
			want: "1986-EN",
		},
		{
			name: "1950 always plain",
			in:   ResolveInput{RequirementYear: "1950", SchoolOfRecord: "09336789", FrenchIndicator: "Y"},
			want: "1950",
		},
		{
			name: "SCCP always SCCP",
			in:   ResolveInput{RequirementYear: "SCCP", SchoolOfRecord: "03636018"},
			want: "SCCP",
		},
		{
			name:  "unmapped requirement year",
			in:    ResolveInput{RequirementYear: "1999", SchoolOfRecord: "03636018"},
			fails: true,
		},
		{
			name:  "empty requirement year",
			in:    ResolveInput{RequirementYear: "", SchoolOfRecord: "03636018"},
			fails: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.in)

			if tt.fails {
				require.Error(t, err)
				var resErr *ResolutionError
				require.True(t, errors.As(err, &resErr))
				assert.Equal(t, tt.in.RequirementYear, resErr.RequirementYear)
				assert.Contains(t, resErr.Reason, "unmapped")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_GraduatedStudents(t *testing.T) {
	tests := []struct {
		name  string
		in    ResolveInput
		want  string
		fails bool
	}{
		{
			name: "2018 francophone school with F certificate",
			in:   ResolveInput{RequirementYear: "2018", SchoolOfRecord: "0933021", FrenchIndicator: "F", Graduated: true},
			want: "2018-PF",
		},
		{
			name: "2018 francophone school with S certificate",
			in:   ResolveInput{RequirementYear: "2018", SchoolOfRecord: "0933021", FrenchIndicator: "S", Graduated: true},
			want: "2018-PF",
		},
		{
			// Certificate not F/S even though the school prefix matches.
			name: "2018 francophone school with E certificate",
			in:   ResolveInput{RequirementYear: "2018", SchoolOfRecord: "0933021", FrenchIndicator: "E", Graduated: true},
			want: "2018-EN",
		},
		{
			name: "2018 regular school with F certificate",
			in:   ResolveInput{RequirementYear: "2018", SchoolOfRecord: "03636018", FrenchIndicator: "F", Graduated: true},
			want: "2018-EN",
		},
		{
			name: "2004 francophone with certificate",
			in:   ResolveInput{RequirementYear: "2004", SchoolOfRecord: "09312345", FrenchIndicator: "S", Graduated: true},
			want: "2004-PF",
		},
		{
			name: "1996 maps to 1996 program",
			in:   ResolveInput{RequirementYear: "1996", SchoolOfRecord: "09312345", FrenchIndicator: "F", Graduated: true},
			want: "1996-PF",
		},
		{
			name: "1995 also maps to 1996 program",
			in:   ResolveInput{RequirementYear: "1995", SchoolOfRecord: "03636018", Graduated: true},
			want: "1996-EN",
		},
		{
			// No graduated PF variant for 1986; intentional asymmetry with
			// the current-student table.
			name: "1986 ignores french indicator",
			in:   ResolveInput{RequirementYear: "1986", SchoolOfRecord: "09312345", FrenchIndicator: "F", Graduated: true},
			want: "1986-EN",
		},
		{
			name: "1950 with adult grade",
			in:   ResolveInput{RequirementYear: "1950", StudentGrade: student.GradeAdult, Graduated: true},
			want: "1950",
		},
		{
			name:  "1950 without adult grade",
			in:    ResolveInput{RequirementYear: "1950", StudentGrade: "12", Graduated: true},
			fails: true,
		},
		{
			name: "SCCP",
			in:   ResolveInput{RequirementYear: "SCCP", Graduated: true},
			want: "SCCP",
		},
		{
			name:  "unmapped year",
			in:    ResolveInput{RequirementYear: "2023", Graduated: true},
			fails: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.in)

			if tt.fails {
				var resErr *ResolutionError
				require.True(t, errors.As(err, &resErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_FrancophoneSchoolIndicatorPrecedence(t *testing.T) {
	// resolve("2018","0933021", null, false) == "2018-PF"
	code, err := Resolve(ResolveInput{RequirementYear: "2018", SchoolOfRecord: "0933021"})
	require.NoError(t, err)
	assert.Equal(t, "2018-PF", code)

	// resolve("2018","0933021","E", true) == "2018-EN"
	code, err = Resolve(ResolveInput{RequirementYear: "2018", SchoolOfRecord: "0933021", FrenchIndicator: "E", Graduated: true})
	require.NoError(t, err)
	assert.Equal(t, "2018-EN", code)
}

func TestIsProtected(t *testing.T) {
	assert.True(t, IsProtected("DD"))
	assert.True(t, IsProtected("FI"))
	assert.True(t, IsProtected("CP"))
	assert.False(t, IsProtected("AD"))
	assert.False(t, IsProtected("XC"))
	assert.False(t, IsProtected(""))
}

func TestProgramSuffixHelpers(t *testing.T) {
	assert.True(t, IsProgrammeFrancophone("2018-PF"))
	assert.False(t, IsProgrammeFrancophone("2018-EN"))
	assert.False(t, IsProgrammeFrancophone("1950"))

	assert.True(t, IsEnglishProgram("2004-EN"))
	assert.False(t, IsEnglishProgram("2004-PF"))
	assert.False(t, IsEnglishProgram("SCCP"))
}
