package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/filestore"
	"github.com/ahmedmirza994/whatsapp-sub001/services"
)

const maxUploadBytes = 5 << 20

type UserHandler struct {
	users services.IUserService
	files *filestore.LocalStore
	log   *slog.Logger
}

func NewUserHandler(users services.IUserService, files *filestore.LocalStore, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, files: files, log: log}
}

type userResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt,
	}
}

func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var request auth.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.ErrInvalidPassword)
		return
	}

	user, token, err := h.users.Signup(request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token.String(), User: toUserResponse(user)})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var request auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.ErrInvalidCredentials)
		return
	}

	user, token, err := h.users.Login(request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token.String(), User: toUserResponse(user)})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.ErrMissingCredential)
		return
	}
	user, err := h.users.GetUser(identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	query := r.URL.Query().Get("q")

	users, err := h.users.SearchUsers(query, identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) userResponse {
		return toUserResponse(u)
	}))
}

// UploadProfilePicture stores the posted image and links it to the caller.
func (h *UserHandler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.ErrMissingCredential)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, errors.ErrUnsupportedFileType)
		return
	}
	file, _, err := r.FormFile("picture")
	if err != nil {
		writeError(w, errors.ErrUnsupportedFileType)
		return
	}
	defer file.Close()

	filename, err := h.files.Save(file)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfilePicture(identity.UserID, filename)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	f, err := h.files.Open(filename)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, filename, time.Time{}, f)
}
