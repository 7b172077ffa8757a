package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
)

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	used, max, err := s.items.Quota(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Used int64 `json:"used"`
		Max  int64 `json:"max"`
	}{Used: used, Max: max})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID     string `json:"uuid"`
		Parent   string `json:"parent"`
		Metadata []byte `json:"metadata"`
		Nonce    []byte `json:"nonce"`
		NameHash string `json:"nameHash"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	item := &models.Item{
		UUID:     req.UUID,
		Parent:   req.Parent,
		Metadata: req.Metadata,
		Nonce:    req.Nonce,
		NameHash: req.NameHash,
	}
	if err := s.items.CreateFolder(r.Context(), userID(r.Context()), item); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFolderExists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent   string `json:"parent"`
		NameHash string `json:"nameHash"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	exists, uuid, err := s.items.FolderExists(r.Context(), userID(r.Context()), req.Parent, req.NameHash)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Exists bool   `json:"exists"`
		UUID   string `json:"uuid"`
	}{Exists: exists, UUID: uuid})
}

func (s *Server) handleListFolder(w http.ResponseWriter, r *http.Request) {
	parent := chi.URLParam(r, "parent")

	items, err := s.items.ListFolder(r.Context(), userID(r.Context()), parent)
	if err != nil {
		writeError(w, err)
		return
	}

	wire := make([]*services.WireItem, 0, len(items))
	for _, item := range items {
		wire = append(wire, services.ToWireItem(item))
	}

	writeJSON(w, http.StatusOK, struct {
		Items []*services.WireItem `json:"items"`
	}{Items: wire})
}

func chunkIndex(r *http.Request) (int64, bool) {
	index, err := strconv.ParseInt(chi.URLParam(r, "index"), 10, 64)
	return index, err == nil
}

func (s *Server) handleUploadChunkURL(w http.ResponseWriter, r *http.Request) {
	index, ok := chunkIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid chunk index"})
		return
	}

	var req struct {
		Parent    string `json:"parent"`
		UploadKey string `json:"uploadKey"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	url, err := s.items.UploadChunkURL(r.Context(), userID(r.Context()),
		chi.URLParam(r, "uuid"), index, req.Parent, req.UploadKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		URL string `json:"url"`
	}{URL: url})
}

func (s *Server) handleDownloadChunkURL(w http.ResponseWriter, r *http.Request) {
	index, ok := chunkIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid chunk index"})
		return
	}

	url, err := s.items.DownloadChunkURL(r.Context(), userID(r.Context()), chi.URLParam(r, "uuid"), index)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		URL string `json:"url"`
	}{URL: url})
}

func (s *Server) handleUploadDone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent    string `json:"parent"`
		Metadata  []byte `json:"metadata"`
		Nonce     []byte `json:"nonce"`
		NameHash  string `json:"nameHash"`
		Size      int64  `json:"size"`
		Chunks    int64  `json:"chunks"`
		Mime      string `json:"mime"`
		UploadKey string `json:"uploadKey"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	item, err := s.items.FinishUpload(r.Context(), userID(r.Context()), &services.FinishUploadRequest{
		UUID:      chi.URLParam(r, "uuid"),
		Parent:    req.Parent,
		Metadata:  req.Metadata,
		Nonce:     req.Nonce,
		NameHash:  req.NameHash,
		Size:      req.Size,
		Chunks:    req.Chunks,
		Mime:      req.Mime,
		UploadKey: req.UploadKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Chunks int64  `json:"chunks"`
		Bucket string `json:"bucket"`
		Region string `json:"region"`
	}{Chunks: item.Chunks, Bucket: item.Bucket, Region: item.Region})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent string `json:"parent"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	if err := s.items.Move(r.Context(), userID(r.Context()), chi.URLParam(r, "uuid"), req.Parent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request) {
	if err := s.items.Trash(r.Context(), userID(r.Context()), chi.URLParam(r, "uuid")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent string `json:"parent"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	if err := s.items.Restore(r.Context(), userID(r.Context()), chi.URLParam(r, "uuid"), req.Parent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value bool `json:"value"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	if err := s.items.Favorite(r.Context(), userID(r.Context()), chi.URLParam(r, "uuid"), req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	if err := s.items.ChangeColor(r.Context(), userID(r.Context()), chi.URLParam(r, "uuid"), req.Color); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
