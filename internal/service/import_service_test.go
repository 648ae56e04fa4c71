package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/dto"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/importer"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/model"
	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/repository"
)

// ── 测试辅助 ──

func setupTestImportService(t *testing.T) (ImportService, ScheduleService, *repository.Repository) {
	t.Helper()
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CommonCode.Create(ctx, &model.CommonCode{Code: "DOC", Name: "서류면접", UnitFee: 30000}))
	require.NoError(t, repo.User.Create(ctx, &model.User{UserID: "hong", Name: "홍길동", Role: model.RoleConsultant, Status: model.UserStatusApproved}))

	cfg := testConfig()
	schedules := NewScheduleService(cfg, repo, nil, nil, zap.NewNop())
	return NewImportService(cfg, repo, schedules, nil, zap.NewNop()), schedules, repo
}

// marchWorkbook 2026年3月：5 日 10:00 홍길동 서류면접，5 日 14:00 未登记顾问
func marchWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "2026년 3월")
	_ = f.SetCellValue("Sheet1", "B2", 5)
	_ = f.SetCellValue("Sheet1", "B3", "10:00 서류면접(홍길동)\n14:00 서류면접(신입T)")
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportService_Preview(t *testing.T) {
	svc, schedules, _ := setupTestImportService(t)
	ctx := context.Background()

	res, err := svc.Preview(ctx, marchWorkbook(t), 0)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, []string{"신입T"}, res.UnmatchedConsultants)

	march, err := schedules.GetMonth(ctx, "2026-03")
	require.NoError(t, err)
	assert.Empty(t, march.Items, "预览不写入")
}

func TestImportService_MergeTwiceIsIdempotent(t *testing.T) {
	svc, schedules, _ := setupTestImportService(t)
	ctx := context.Background()
	data := marchWorkbook(t)

	first, err := svc.Import(ctx, data, &dto.ImportRequest{Mode: "merge"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Parsed)
	require.NotNil(t, first.Result)
	assert.Equal(t, 2, first.Result.Summary.Added)

	second, err := svc.Import(ctx, data, &dto.ImportRequest{Mode: "merge"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.ChangeSummary{Unchanged: 2}, second.Result.Summary)

	march, err := schedules.GetMonth(ctx, "2026-03")
	require.NoError(t, err)
	require.Len(t, march.Items, 2)
	assert.Equal(t, "DOC", march.Items[0].TypeCode)
	assert.Equal(t, "unknown_신입", march.Items[1].ConsultantID)
}

func TestImportService_ReplaceOnlyTouchesSheetMonths(t *testing.T) {
	svc, schedules, _ := setupTestImportService(t)
	ctx := context.Background()

	_, err := schedules.AddSchedule(ctx, rec(at(5, 10, 1), "kim", "DOC"), "admin")
	require.NoError(t, err)
	_, err = schedules.AddSchedule(ctx, rec(at(3, 20, 1), "lee", "DOC"), "admin")
	require.NoError(t, err)

	resp, err := svc.Import(ctx, marchWorkbook(t), &dto.ImportRequest{Mode: "replace"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03"}, resp.Result.Months)
	assert.Equal(t, 1, resp.Result.Summary.Deleted)

	may, err := schedules.GetMonth(ctx, "2026-05")
	require.NoError(t, err)
	assert.Len(t, may.Items, 1, "表格之外的月份不受替换影响")
}

func TestImportService_NoRecords(t *testing.T) {
	svc, _, _ := setupTestImportService(t)

	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "2026년 3월")
	_ = f.SetCellValue("Sheet1", "A2", "메모")
	_ = f.SetCellValue("Sheet1", "A3", "없음")
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	f.Close()

	_, err = svc.Import(context.Background(), buf.Bytes(), &dto.ImportRequest{Mode: "merge"}, "admin")
	assert.ErrorIs(t, err, importer.ErrNoRecords)

	_, err = svc.Preview(context.Background(), []byte("not a workbook"), 0)
	assert.ErrorIs(t, err, importer.ErrInvalidWorkbook)
}
