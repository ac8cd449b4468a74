//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schoolweb/internal/model"
	"schoolweb/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=schoolweb password=schoolweb dbname=schoolweb_test sslmode=disable TimeZone=Europe/Berlin"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	if err := testDB.AutoMigrate(&model.CalendarSyncLog{}); err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func cleanupCourse(t *testing.T, courseID string) {
	t.Helper()
	testDB.Where("course_id = ?", courseID).Delete(&model.CalendarSyncLog{})
}

// ═══════════════════════════════════════════════════════════
// SyncLogRepository
// ═══════════════════════════════════════════════════════════

func TestSyncLogRepo_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSyncLogRepo(testDB)
	courseID := fmt.Sprintf("course-%d", time.Now().UnixNano())
	defer cleanupCourse(t, courseID)

	cause := "POST /calendar: HTTP 503"
	entries := []*model.CalendarSyncLog{
		{CourseID: courseID, Action: model.SyncActionCreate, Status: "synced", Created: 2, CreatedAt: time.Now().Add(-time.Hour)},
		{CourseID: courseID, Action: model.SyncActionUpdate, Status: "degraded", Created: 1, Kept: 1, Cause: &cause, CreatedAt: time.Now()},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("创建同步记录失败: %v", err)
		}
		if e.SyncLogID == "" {
			t.Error("期望数据库生成 sync_log_id")
		}
	}

	logs, err := repo.ListByCourse(ctx, courseID, 10)
	if err != nil {
		t.Fatalf("查询同步记录失败: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("期望 2 条记录，实际=%d", len(logs))
	}
	if logs[0].Status != "degraded" || logs[0].Cause == nil || *logs[0].Cause != cause {
		t.Errorf("期望最新记录在前，实际=%+v", logs[0])
	}

	limited, _ := repo.ListByCourse(ctx, courseID, 1)
	if len(limited) != 1 {
		t.Errorf("limit 未生效，实际=%d", len(limited))
	}
}

func TestSyncLogRepo_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSyncLogRepo(testDB)
	courseID := fmt.Sprintf("course-%d", time.Now().UnixNano())
	defer cleanupCourse(t, courseID)

	now := time.Now()
	_ = repo.Create(ctx, &model.CalendarSyncLog{CourseID: courseID, Action: "create", Status: "synced", CreatedAt: now.AddDate(0, 0, -120)})
	_ = repo.Create(ctx, &model.CalendarSyncLog{CourseID: courseID, Action: "update", Status: "synced", CreatedAt: now})

	n, err := repo.DeleteBefore(ctx, now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("清理失败: %v", err)
	}
	if n < 1 {
		t.Errorf("期望至少删除 1 条，实际=%d", n)
	}

	logs, _ := repo.ListByCourse(ctx, courseID, 10)
	if len(logs) != 1 || logs[0].Action != "update" {
		t.Errorf("期望只保留最近的记录，实际=%+v", logs)
	}
}
