package excelmap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
)

type user struct {
	ID   int
	Name string
}

type member struct {
	ID   int
	Nick *string
	Age  int
}

type counter struct {
	Count int
}

// book builds an in-memory workbook with fill applied to its default sheet.
func book(t *testing.T, fill func(f *excelize.File, sheet string)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	fill(f, "Sheet1")
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func setRow(t *testing.T, f *excelize.File, sheet string, row int, values ...any) {
	t.Helper()
	cell, err := excelize.CoordinatesToCellName(1, row)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(sheet, cell, &values))
}

func TestExcelmapTestSuite(t *testing.T) {
	suite.Run(t, new(ExcelmapTestSuite))
}

type ExcelmapTestSuite struct {
	suite.Suite
	users   []user
	headers HeaderMap
}

func (s *ExcelmapTestSuite) SetupTest() {
	s.users = []user{{ID: 1, Name: "Lei"}, {ID: 2, Name: "Jim"}}
	s.headers = Headers("id", "Id", "name", "Name")
}

func (s *ExcelmapTestSuite) TestSave_RoundTrip() {
	var buf bytes.Buffer
	derrs, err := Save(&buf, s.headers, s.users)
	s.Require().NoError(err)
	s.Empty(derrs)
	s.Positive(buf.Len())

	got, cerrs, err := Parse[user](&buf, ReverseHeaderMap{"Id": "id", "Name": "name"})
	s.Require().NoError(err)
	s.Empty(cerrs)
	s.Equal(s.users, got)
}

func (s *ExcelmapTestSuite) TestSave_HeaderRowAndStringCells() {
	var buf bytes.Buffer
	_, err := Save(&buf, s.headers, s.users)
	s.Require().NoError(err)

	f, err := excelize.OpenReader(&buf)
	s.Require().NoError(err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	s.Require().NoError(err)
	s.Equal([][]string{{"Id", "Name"}, {"1", "Lei"}, {"2", "Jim"}}, rows)

	ct, err := f.GetCellType("Sheet1", "A2")
	s.Require().NoError(err)
	s.Contains([]excelize.CellType{excelize.CellTypeSharedString, excelize.CellTypeInlineString}, ct)

	headerStyle, err := f.GetCellStyle("Sheet1", "A1")
	s.Require().NoError(err)
	s.Positive(headerStyle)
}

func (s *ExcelmapTestSuite) TestSave_PlaceholderAndErrorStyle() {
	var buf bytes.Buffer
	headers := Headers("id", "Id", "nickname", "Nick")
	derrs, err := Save(&buf, headers, s.users, Placeholder("#ERR"))
	s.Require().NoError(err)
	s.Require().Len(derrs, 2)
	s.Positive(buf.Len())

	f, err := excelize.OpenReader(&buf)
	s.Require().NoError(err)
	defer f.Close()

	v, err := f.GetCellValue("Sheet1", "B2")
	s.Require().NoError(err)
	s.Equal("#ERR", v)

	errStyle, err := f.GetCellStyle("Sheet1", "B2")
	s.Require().NoError(err)
	s.Positive(errStyle)
	okStyle, err := f.GetCellStyle("Sheet1", "A2")
	s.Require().NoError(err)
	s.Zero(okStyle)
}

func (s *ExcelmapTestSuite) TestSaveIfNoDatumError_SkipsWrite() {
	var buf bytes.Buffer
	headers := Headers("id", "Id", "nickname", "Nick", "name", "Name")
	derrs, err := SaveIfNoDatumError(&buf, headers, s.users)
	s.Require().NoError(err)
	s.Zero(buf.Len())
	s.Require().Len(derrs, 2)
	for i, de := range derrs {
		s.Equal(i, de.Record)
		s.Equal("nickname", de.Prop)
		s.ErrorIs(de, ErrAccess)
	}
}

func (s *ExcelmapTestSuite) TestSaveIfNoDatumError_WritesWhenClean() {
	var buf bytes.Buffer
	derrs, err := SaveIfNoDatumError(&buf, s.headers, s.users)
	s.Require().NoError(err)
	s.Empty(derrs)
	s.Positive(buf.Len())
}

func (s *ExcelmapTestSuite) TestSave_InvalidArguments() {
	var buf bytes.Buffer
	_, err := Save(&buf, HeaderMap{}, s.users)
	s.ErrorIs(err, ErrInvalidArgument)

	_, err = Save(&buf, Headers(" ", "Id"), s.users)
	s.ErrorIs(err, ErrInvalidArgument)

	_, err = Save[user](nil, s.headers, s.users)
	s.ErrorIs(err, ErrInvalidArgument)

	_, err = Save(&buf, s.headers, []*user{{ID: 1}})
	s.ErrorIs(err, ErrInvalidArgument)
	s.Zero(buf.Len())
}

func (s *ExcelmapTestSuite) TestSave_NilRecordsWritesHeaderOnly() {
	var buf bytes.Buffer
	derrs, err := Save[user](&buf, s.headers, nil)
	s.Require().NoError(err)
	s.Empty(derrs)

	got, _, err := Parse[user](&buf, s.headers.Reverse())
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ExcelmapTestSuite) TestSaveAndGet_AppendSheet() {
	wb, derrs, err := SaveAndGet(io.Discard, s.headers, s.users, Sheet("Users"))
	s.Require().NoError(err)
	s.Empty(derrs)
	defer wb.Close()

	counters := []counter{{Count: 7}}
	var buf bytes.Buffer
	wb, derrs, err = AppendSheet(wb, &buf, Headers("count", "Count"), counters, Sheet("Counters"))
	s.Require().NoError(err)
	s.Empty(derrs)
	s.Equal([]string{"Users", "Counters"}, wb.SheetNames())

	data := buf.Bytes()
	gotUsers, _, err := Parse[user](bytes.NewReader(data), s.headers.Reverse(), Sheet("Users"))
	s.Require().NoError(err)
	s.Equal(s.users, gotUsers)

	gotCounters, _, err := Parse[counter](bytes.NewReader(data), ReverseHeaderMap{"Count": "count"}, SheetAt(1))
	s.Require().NoError(err)
	s.Equal(counters, gotCounters)
}

func (s *ExcelmapTestSuite) TestAppendSheet_DuplicateName() {
	wb, _, err := SaveAndGet(io.Discard, s.headers, s.users, Sheet("Users"))
	s.Require().NoError(err)
	defer wb.Close()

	_, _, err = AppendSheet(wb, io.Discard, s.headers, s.users, Sheet("Users"))
	s.ErrorIs(err, ErrInvalidArgument)

	_, _, err = AppendSheet[user](nil, io.Discard, s.headers, s.users)
	s.ErrorIs(err, ErrInvalidArgument)
}

func (s *ExcelmapTestSuite) TestAppendSheet_DefaultNames() {
	wb, _, err := SaveAndGet(io.Discard, s.headers, s.users)
	s.Require().NoError(err)
	defer wb.Close()

	_, _, err = AppendSheet(wb, io.Discard, s.headers, s.users)
	s.Require().NoError(err)
	s.Equal([]string{"Sheet1", "Sheet2"}, wb.SheetNames())
}

func (s *ExcelmapTestSuite) TestWorkbook_WriteTo() {
	wb, _, err := SaveAndGet(io.Discard, s.headers, s.users, Sheet("Users"))
	s.Require().NoError(err)
	defer wb.Close()

	var buf bytes.Buffer
	n, err := wb.WriteTo(&buf)
	s.Require().NoError(err)
	s.Equal(int64(buf.Len()), n)

	got, _, err := Parse[user](&buf, s.headers.Reverse(), Sheet("Users"))
	s.Require().NoError(err)
	s.Equal(s.users, got)
}

func (s *ExcelmapTestSuite) TestSaveFile_ParseFile() {
	path := filepath.Join(s.T().TempDir(), "users.xlsx")
	derrs, err := SaveFile(path, s.headers, s.users)
	s.Require().NoError(err)
	s.Empty(derrs)

	got, cerrs, err := ParseFile[user](path, s.headers.Reverse())
	s.Require().NoError(err)
	s.Empty(cerrs)
	s.Equal(s.users, got)
}

func (s *ExcelmapTestSuite) TestSaveFile_StrictSkipLeavesPathUntouched() {
	dir := s.T().TempDir()
	headers := Headers("id", "Id", "nickname", "Nick")

	missing := filepath.Join(dir, "missing.xlsx")
	derrs, err := SaveFile(missing, headers, s.users, Strict())
	s.Require().NoError(err)
	s.Len(derrs, 2)
	_, err = os.Stat(missing)
	s.True(os.IsNotExist(err))

	existing := filepath.Join(dir, "existing.xlsx")
	s.Require().NoError(os.WriteFile(existing, []byte("keep"), 0o600))
	_, err = SaveFile(existing, headers, s.users, Strict())
	s.Require().NoError(err)
	data, err := os.ReadFile(existing)
	s.Require().NoError(err)
	s.Equal("keep", string(data))
}

func (s *ExcelmapTestSuite) TestParseFile_MissingFile() {
	_, _, err := ParseFile[user](filepath.Join(s.T().TempDir(), "none.xlsx"), s.headers.Reverse())
	s.ErrorIs(err, ErrIO)
	s.NotErrorIs(err, ErrInvalidFormat)
}

func (s *ExcelmapTestSuite) TestSave_LowercaseOverloadOnDerivedField() {
	type gauge struct {
		Level int8
		Wide  float64 `excel:"-"`
	}
	schema := MustSchema[gauge]().
		Setter("level", FloatSetter(func(g *gauge, v float64) error {
			g.Wide = v
			return nil
		}))
	s.Len(schema.Setters("level"), 2)

	headers := Headers("level", "Level")
	var buf bytes.Buffer
	derrs, err := Save(&buf, headers, []gauge{{Level: 5}}, UseSchema(schema))
	s.Require().NoError(err)
	s.Empty(derrs)

	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Level")
		setRow(s.T(), f, sheet, 2, "300")
		setRow(s.T(), f, sheet, 3, "7")
	})
	got, cerrs, err := Parse[gauge](bytes.NewReader(data), headers.Reverse(), UseSchema(schema))
	s.Require().NoError(err)
	s.Empty(cerrs)
	s.Equal([]gauge{{Wide: 300}, {Level: 7}}, got)

	got, _, err = Parse[gauge](&buf, headers.Reverse(), UseSchema(schema))
	s.Require().NoError(err)
	s.Equal([]gauge{{Level: 5}}, got)
}

func (s *ExcelmapTestSuite) TestParse_UnmatchedHeaderRow() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Foo", "Bar")
		setRow(s.T(), f, sheet, 2, "1", "Lei")
	})

	_, _, err := Parse[user](bytes.NewReader(data), ReverseHeaderMap{"Id": "id", "Name": "name"})
	s.ErrorIs(err, ErrInvalidHeaderRow)

	got, err := ParseIgnoringErrors[user](bytes.NewReader(data), ReverseHeaderMap{"Id": "id", "Name": "name"})
	s.Require().NoError(err)
	s.NotNil(got)
	s.Empty(got)
}

func (s *ExcelmapTestSuite) TestParse_PartiallyMatchedHeaderRow() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Id", "Unknown", "Name")
		setRow(s.T(), f, sheet, 2, "1", "x", "Lei")
	})

	got, cerrs, err := Parse[user](bytes.NewReader(data), ReverseHeaderMap{"Id": "id", "Name": "name"})
	s.Require().NoError(err)
	s.Empty(cerrs)
	s.Equal([]user{{ID: 1, Name: "Lei"}}, got)
}

func (s *ExcelmapTestSuite) TestParse_InvalidFormat() {
	_, _, err := Parse[user](strings.NewReader("not a workbook"), ReverseHeaderMap{"Id": "id"})
	s.ErrorIs(err, ErrInvalidFormat)

	got, err := ParseIgnoringErrors[user](strings.NewReader("not a workbook"), ReverseHeaderMap{"Id": "id"})
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ExcelmapTestSuite) TestParse_InvalidArguments() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Id")
	})

	_, _, err := Parse[user](bytes.NewReader(data), ReverseHeaderMap{})
	s.ErrorIs(err, ErrInvalidArgument)

	_, _, err = Parse[user](bytes.NewReader(data), ReverseHeaderMap{"  ": "id"})
	s.ErrorIs(err, ErrInvalidArgument)

	_, _, err = Parse[user](bytes.NewReader(data), ReverseHeaderMap{"Id": ""})
	s.ErrorIs(err, ErrInvalidArgument)

	_, err = ParseIgnoringErrors[user](bytes.NewReader(data), ReverseHeaderMap{})
	s.ErrorIs(err, ErrInvalidArgument)
}

func (s *ExcelmapTestSuite) TestParse_SheetSelection() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Id", "Name")
		setRow(s.T(), f, sheet, 2, "1", "Lei")
	})
	headers := ReverseHeaderMap{"Id": "id", "Name": "name"}

	got, _, err := Parse[user](bytes.NewReader(data), headers, SheetAt(5))
	s.ErrorIs(err, ErrSheetNotFound)
	s.Nil(got)

	got, _, err = Parse[user](bytes.NewReader(data), headers, Sheet("nope"))
	s.ErrorIs(err, ErrSheetNotFound)
	s.Nil(got)

	_, err = ParseIgnoringErrors[user](bytes.NewReader(data), headers, SheetAt(1))
	s.ErrorIs(err, ErrSheetNotFound)

	got, _, err = Parse[user](bytes.NewReader(data), headers, Sheet("Sheet1"))
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *ExcelmapTestSuite) TestParse_BlankRows() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Id", "Nick", "Age")
		setRow(s.T(), f, sheet, 2, "1", "lei", "30")
		// row 3 left empty
		s.Require().NoError(f.SetCellStr(sheet, "A4", "3"))
		s.Require().NoError(f.SetCellInt(sheet, "C4", 41))
	})

	got, cerrs, err := Parse[member](bytes.NewReader(data), ReverseHeaderMap{"Id": "id", "Nick": "nick", "Age": "age"})
	s.Require().NoError(err)
	s.Empty(cerrs)
	s.Require().Len(got, 2)

	s.Equal(1, got[0].ID)
	s.Require().NotNil(got[0].Nick)
	s.Equal("lei", *got[0].Nick)
	s.Equal(30, got[0].Age)

	s.Equal(3, got[1].ID)
	s.Nil(got[1].Nick)
	s.Equal(41, got[1].Age)
}

func (s *ExcelmapTestSuite) TestParse_NumericTextCoercion() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Count")
		setRow(s.T(), f, sheet, 2, "42")
		setRow(s.T(), f, sheet, 3, "abc")
	})

	got, cerrs, err := Parse[counter](bytes.NewReader(data), ReverseHeaderMap{"Count": "count"})
	s.Require().NoError(err)
	s.Equal([]counter{{Count: 42}, {Count: 0}}, got)

	s.Require().Len(cerrs, 1)
	ce := cerrs[0]
	s.Equal(2, ce.Row)
	s.Equal(0, ce.Col)
	s.Equal("A3", ce.Cell)
	s.Equal("Count", ce.Header)
	s.Equal("count", ce.Prop)
	s.Equal("abc", ce.Value)
	s.ErrorIs(ce, ErrNoSuitableSetter)
	s.Contains(ce.Error(), "no suitable setter")
}

func (s *ExcelmapTestSuite) TestParse_TypedCells() {
	type entry struct {
		Name   string
		Active bool
		Score  float64
		Since  time.Time
		Total  *int
	}
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Name", "Active", "Score", "Since", "Total")
		s.Require().NoError(f.SetCellBool(sheet, "A2", true))
		s.Require().NoError(f.SetCellBool(sheet, "B2", true))
		s.Require().NoError(f.SetCellFloat(sheet, "C2", 9.5, -1, 64))
		s.Require().NoError(f.SetCellValue(sheet, "D2", since))
		s.Require().NoError(f.SetCellFormula(sheet, "E2", "1+1"))
	})

	got, cerrs, err := Parse[entry](bytes.NewReader(data), ReverseHeaderMap{
		"Name": "name", "Active": "active", "Score": "score", "Since": "since", "Total": "total",
	})
	s.Require().NoError(err)
	s.Empty(cerrs)
	s.Require().Len(got, 1)
	s.Equal("true", got[0].Name)
	s.True(got[0].Active)
	s.Equal(9.5, got[0].Score)
	s.True(since.Equal(got[0].Since), "got %v", got[0].Since)
	s.Nil(got[0].Total)
}

func (s *ExcelmapTestSuite) TestParse_DateCellNeedsTimeSetter() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Name")
		s.Require().NoError(f.SetCellValue(sheet, "A2", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	})

	got, cerrs, err := Parse[user](bytes.NewReader(data), ReverseHeaderMap{"Name": "name"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Empty(got[0].Name)
	s.Require().Len(cerrs, 1)
	s.ErrorIs(cerrs[0], ErrNoSuitableSetter)
}

func (s *ExcelmapTestSuite) TestParse_RecordKeptWhenAllCellsFail() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Id", "Missing")
		setRow(s.T(), f, sheet, 2, "x", "y")
	})

	got, cerrs, err := Parse[user](bytes.NewReader(data), ReverseHeaderMap{"Id": "id", "Missing": "missing"})
	s.Require().NoError(err)
	s.Equal([]user{{}}, got)
	s.Len(cerrs, 2)
}

func (s *ExcelmapTestSuite) TestParse_RowWidthBoundsScan() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Id", "Count")
		setRow(s.T(), f, sheet, 2, "5")
	})

	type row struct {
		ID    int
		Count int
	}
	got, cerrs, err := Parse[row](bytes.NewReader(data), ReverseHeaderMap{"Id": "id", "Count": "count"})
	s.Require().NoError(err)
	// Count is beyond the row's last cell, so it is never examined.
	s.Empty(cerrs)
	s.Equal([]row{{ID: 5}}, got)
}

func (s *ExcelmapTestSuite) TestParse_WithSchema() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Key", "Value")
		setRow(s.T(), f, sheet, 2, "a", "1")
	})

	type kv map[string]string
	schema := MustSchema[kv]().Constructor(func() kv { return kv{} })
	for _, prop := range []string{"key", "value"} {
		schema.Setter(prop, StringSetter(func(rec *kv, v string) error {
			(*rec)[prop] = v
			return nil
		}))
	}

	got, cerrs, err := Parse[kv](bytes.NewReader(data), ReverseHeaderMap{"Key": "key", "Value": "value"}, UseSchema(schema))
	s.Require().NoError(err)
	s.Empty(cerrs)
	s.Equal([]kv{{"key": "a", "value": "1"}}, got)

	_, _, err = Parse[user](bytes.NewReader(data), ReverseHeaderMap{"Key": "key"}, UseSchema(schema))
	s.ErrorIs(err, ErrInvalidArgument)
}

func (s *ExcelmapTestSuite) TestWriteErrorsTo() {
	data := book(s.T(), func(f *excelize.File, sheet string) {
		setRow(s.T(), f, sheet, 1, "Count")
		setRow(s.T(), f, sheet, 2, "42")
		setRow(s.T(), f, sheet, 3, "abc")
	})
	_, cerrs, err := Parse[counter](bytes.NewReader(data), ReverseHeaderMap{"Count": "count"})
	s.Require().NoError(err)
	s.Require().Len(cerrs, 1)

	var out bytes.Buffer
	s.Require().NoError(WriteErrorsTo(&out, bytes.NewReader(data), cerrs, ErrCol(3)))

	f, err := excelize.OpenReader(&out)
	s.Require().NoError(err)
	defer f.Close()

	msg, err := f.GetCellValue("Sheet1", "C3")
	s.Require().NoError(err)
	s.Contains(msg, "Count: ")
	s.Contains(msg, "no suitable setter")

	styleID, err := f.GetCellStyle("Sheet1", "A3")
	s.Require().NoError(err)
	s.Positive(styleID)

	s.ErrorIs(WriteErrorsTo(io.Discard, bytes.NewReader(data), cerrs), ErrInvalidArgument)

	var copied bytes.Buffer
	s.Require().NoError(WriteErrorsTo(&copied, bytes.NewReader(data), nil))
	s.Equal(data, copied.Bytes())
}

func TestShouldSave(t *testing.T) {
	errs := []DatumError{{Record: 0, Prop: "x"}}
	require.True(t, shouldSave(nil, false))
	require.True(t, shouldSave(errs, false))
	require.True(t, shouldSave(nil, true))
	require.False(t, shouldSave(errs, true))
}
