package repository

import (
	"context"
	"net/url"
	"strconv"

	"schoolweb/internal/model"
	"schoolweb/pkg/apiclient"
)

// CourseRepository 课程持久化服务访问接口
// 课程与团队共用 /courses 资源
type CourseRepository interface {
	GetByID(ctx context.Context, id string) (*model.Course, error)
	ListByUser(ctx context.Context, userID, filter string, limit int) (*model.CoursePage, error)
	Create(ctx context.Context, course *model.Course) (*model.Course, error)
	Update(ctx context.Context, id string, course *model.Course) (*model.Course, error)
	UpdateTimes(ctx context.Context, id string, times []model.CourseTime) error
	UpdateMembers(ctx context.Context, id string, userIDs []string) error
	Copy(ctx context.Context, req *model.CourseCopyRequest) (*model.Course, error)
	Delete(ctx context.Context, id string) error

	// GetByLink 通过邀请链接读取课程，link 为空时等同 GetByID
	GetByLink(ctx context.Context, id, link string) (*model.Course, error)
	// UpdateMembersByLink 通过邀请链接更新成员
	UpdateMembersByLink(ctx context.Context, id, link string, userIDs []string) error
	// GetShare 获取（必要时生成）课程分享码
	GetShare(ctx context.Context, id string) (*model.CourseShare, error)
	// LookupShare 查询分享码对应的课程名称
	LookupShare(ctx context.Context, token string) (string, error)
	// ImportShared 通过分享码导入课程副本
	ImportShared(ctx context.Context, req *model.CourseImportRequest) (*model.Course, error)
}

type courseRepo struct {
	api *apiclient.Client
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(api *apiclient.Client) CourseRepository {
	return &courseRepo{api: api}
}

func coursePath(id string) string {
	return "/courses/" + url.PathEscape(id)
}

func (r *courseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if err := r.api.Get(ctx, coursePath(id), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListByUser(ctx context.Context, userID, filter string, limit int) (*model.CoursePage, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if limit > 0 {
		q.Set("$limit", strconv.Itoa(limit))
	}

	var page model.CoursePage
	if err := r.api.Get(ctx, "/users/"+url.PathEscape(userID)+"/courses/", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *courseRepo) Create(ctx context.Context, course *model.Course) (*model.Course, error) {
	var created model.Course
	if err := r.api.Post(ctx, "/courses/", course, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *courseRepo) Update(ctx context.Context, id string, course *model.Course) (*model.Course, error) {
	var updated model.Course
	if err := r.api.Patch(ctx, coursePath(id), course, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *courseRepo) UpdateTimes(ctx context.Context, id string, times []model.CourseTime) error {
	return r.api.Patch(ctx, coursePath(id), map[string]interface{}{"times": times}, nil)
}

func (r *courseRepo) UpdateMembers(ctx context.Context, id string, userIDs []string) error {
	if userIDs == nil {
		userIDs = []string{}
	}
	return r.api.Patch(ctx, coursePath(id), map[string]interface{}{"userIds": userIDs}, nil)
}

func (r *courseRepo) Copy(ctx context.Context, req *model.CourseCopyRequest) (*model.Course, error) {
	var created model.Course
	if err := r.api.Post(ctx, "/courses/copy/", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *courseRepo) Delete(ctx context.Context, id string) error {
	return r.api.Delete(ctx, coursePath(id))
}

func linkQuery(link string) url.Values {
	if link == "" {
		return nil
	}
	return url.Values{"link": []string{link}}
}

func (r *courseRepo) GetByLink(ctx context.Context, id, link string) (*model.Course, error) {
	var course model.Course
	if err := r.api.Get(ctx, coursePath(id), linkQuery(link), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) UpdateMembersByLink(ctx context.Context, id, link string, userIDs []string) error {
	if userIDs == nil {
		userIDs = []string{}
	}
	return r.api.PatchQuery(ctx, coursePath(id), linkQuery(link), map[string]interface{}{"userIds": userIDs}, nil)
}

func (r *courseRepo) GetShare(ctx context.Context, id string) (*model.CourseShare, error) {
	var share model.CourseShare
	if err := r.api.Get(ctx, "/courses/share/"+url.PathEscape(id), nil, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

func (r *courseRepo) LookupShare(ctx context.Context, token string) (string, error) {
	var name string
	if err := r.api.Get(ctx, "/courses/share", url.Values{"shareToken": []string{token}}, &name); err != nil {
		return "", err
	}
	return name, nil
}

func (r *courseRepo) ImportShared(ctx context.Context, req *model.CourseImportRequest) (*model.Course, error) {
	var created model.Course
	if err := r.api.Post(ctx, "/courses/share", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
