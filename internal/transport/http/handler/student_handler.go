package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"student-records/internal/domain"
	"student-records/internal/service"
	"student-records/internal/transport/http/ez"
)

// Students 处理器依赖的用例集合
type Students interface {
	Create(ctx context.Context, in service.CreateInput) (*domain.Student, error)
	Update(ctx context.Context, id uint64, in service.UpdateInput, version int64) (*domain.Student, error)
	ChangeStatus(ctx context.Context, id uint64, status domain.Status, version int64) (*domain.Student, error)
	Delete(ctx context.Context, id uint64, version int64) (*domain.Student, error)
	Get(ctx context.Context, id uint64) (*domain.Student, error)
	GetByStudentID(ctx context.Context, sid string) (*domain.Student, error)
	List(ctx context.Context, q domain.ListQuery) ([]domain.Student, int64, error)
	SequenceStatus(ctx context.Context, year int) (int64, error)
}

const dateLayout = "2006-01-02"

type StudentHandler struct {
	svc Students
}

func NewStudentHandler(svc Students) *StudentHandler { return &StudentHandler{svc: svc} }

func (h *StudentHandler) Priority() int { return 10 }

// 请求体只做形状校验（日期格式、大小）；业务规则统一交给 rule.Validator，一次返回全部违例
type createReq struct {
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	Email       string         `json:"email"`
	Mobile      string         `json:"mobile"`
	DateOfBirth string         `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	Status      string         `json:"status"`
	Extra       map[string]any `json:"extra" binding:"omitempty,max=32"`
}

type updateReq struct {
	FirstName   *string        `json:"firstName"`
	LastName    *string        `json:"lastName"`
	Email       *string        `json:"email"`
	Mobile      *string        `json:"mobile"`
	DateOfBirth *string        `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	Extra       map[string]any `json:"extra" binding:"omitempty,max=32"`
	Version     *int64         `json:"version" binding:"required"`
}

type statusReq struct {
	Status  string `json:"status" binding:"required"`
	Version *int64 `json:"version" binding:"required"`
}

type versionReq struct {
	Version *int64 `json:"version" form:"version" binding:"required"`
}

type listReq struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Status string `form:"status"`
}

type listOut struct {
	Total int64            `json:"total"`
	Items []domain.Student `json:"items"`
}

type sequenceOut struct {
	Year      int    `json:"year"`
	LastValue int64  `json:"lastValue"`
	Remaining int64  `json:"remaining"`
	NextID    string `json:"nextId,omitempty"`
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, ez.BadRequest("dateOfBirth must be YYYY-MM-DD")
	}
	return t, nil
}

// MountAPI /api/v1/students
func (h *StudentHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g)

	ez.RegisterAction(e, ez.Action[createReq, *domain.Student]{
		Method: http.MethodPost,
		Path:   "/students",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *createReq) (*domain.Student, error) {
			dob, err := parseDate(in.DateOfBirth)
			if err != nil {
				return nil, err
			}
			return h.svc.Create(c.Request.Context(), service.CreateInput{
				FirstName:   in.FirstName,
				LastName:    in.LastName,
				Email:       in.Email,
				Mobile:      in.Mobile,
				DateOfBirth: dob,
				Status:      domain.Status(in.Status),
				Extra:       in.Extra,
			})
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Student]{
		Method: http.MethodGet,
		Path:   "/students/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Student, error) {
			id, err := ez.ParamUint(c, "id")
			if err != nil {
				return nil, err
			}
			return h.svc.Get(c.Request.Context(), id)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Student]{
		Method: http.MethodGet,
		Path:   "/students/by-sid/:studentId",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Student, error) {
			return h.svc.GetByStudentID(c.Request.Context(), c.Param("studentId"))
		},
	})

	ez.RegisterAction(e, ez.Action[updateReq, *domain.Student]{
		Method: http.MethodPatch,
		Path:   "/students/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *updateReq) (*domain.Student, error) {
			id, err := ez.ParamUint(c, "id")
			if err != nil {
				return nil, err
			}
			patch := service.UpdateInput{
				FirstName: in.FirstName,
				LastName:  in.LastName,
				Email:     in.Email,
				Mobile:    in.Mobile,
				Extra:     in.Extra,
			}
			if in.DateOfBirth != nil {
				dob, err := parseDate(*in.DateOfBirth)
				if err != nil {
					return nil, err
				}
				patch.DateOfBirth = &dob
			}
			return h.svc.Update(c.Request.Context(), id, patch, *in.Version)
		},
	})

	ez.RegisterAction(e, ez.Action[statusReq, *domain.Student]{
		Method: http.MethodPost,
		Path:   "/students/:id/status",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *statusReq) (*domain.Student, error) {
			id, err := ez.ParamUint(c, "id")
			if err != nil {
				return nil, err
			}
			return h.svc.ChangeStatus(c.Request.Context(), id, domain.Status(in.Status), *in.Version)
		},
	})

	// 逻辑删除：DELETE /students/:id?version=N
	ez.RegisterAction(e, ez.Action[versionReq, *domain.Student]{
		Method: http.MethodDelete,
		Path:   "/students/:id",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *versionReq) (*domain.Student, error) {
			id, err := ez.ParamUint(c, "id")
			if err != nil {
				return nil, err
			}
			return h.svc.Delete(c.Request.Context(), id, *in.Version)
		},
	})
}

// MountAdmin /admin/v1
func (h *StudentHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g)

	ez.RegisterAction(e, ez.Action[listReq, listOut]{
		Method: http.MethodGet,
		Path:   "/students",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *listReq) (listOut, error) {
			items, total, err := h.svc.List(c.Request.Context(), domain.ListQuery{
				Offset: in.Offset,
				Limit:  in.Limit,
				Status: domain.Status(in.Status),
			})
			if err != nil {
				return listOut{}, err
			}
			return listOut{Total: total, Items: items}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, sequenceOut]{
		Method: http.MethodGet,
		Path:   "/sequences/:year",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (sequenceOut, error) {
			year, err := strconv.Atoi(c.Param("year"))
			if err != nil || year < 1000 || year > 9999 {
				return sequenceOut{}, ez.BadRequest("invalid year")
			}
			n, err := h.svc.SequenceStatus(c.Request.Context(), year)
			if err != nil {
				return sequenceOut{}, err
			}
			return newSequenceOut(year, n), nil
		},
	})

	ez.RegisterAction(e, ez.Action[versionReq, *domain.Student]{
		Method: http.MethodPost,
		Path:   "/students/:id/deactivate",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *versionReq) (*domain.Student, error) {
			id, err := ez.ParamUint(c, "id")
			if err != nil {
				return nil, err
			}
			return h.svc.Delete(c.Request.Context(), id, *in.Version)
		},
	})
}
