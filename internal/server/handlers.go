package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"drivebridge/internal/archive"
	"drivebridge/internal/config"
	"drivebridge/internal/drive"
	"drivebridge/internal/logging"
	"drivebridge/internal/stream"
)

// handleAuthRedirect sends the browser to Google's consent screen. Offline
// access with forced consent guarantees a refresh token comes back.
func (s *Server) handleAuthRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.auth.AuthCodeURL(""), http.StatusFound)
}

// handleAuthCallback exchanges the authorization code and persists the
// credential, then shows the operator what to do next.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Authorization code not provided", http.StatusBadRequest)
		return
	}

	if err := s.auth.Exchange(r.Context(), code); err != nil {
		s.logger.Error("oauth code exchange failed", logging.Err(err))
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("google drive authenticated", logging.Operation("oauth_callback"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if s.cfg != nil && s.cfg.TokenMode() == config.PersistEnv {
		fmt.Fprint(w, envModeCallbackPage)
		return
	}
	fmt.Fprint(w, fileModeCallbackPage)
}

// handleAuthStatus reports whether a usable Drive credential is held.
func (s *Server) handleAuthStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": s.creds.HasValidAccess()})
}

// handleAuthClear wipes the stored credential.
func (s *Server) handleAuthClear(w http.ResponseWriter, _ *http.Request) {
	if err := s.creds.Clear(); err != nil {
		s.logger.Error("clearing credential failed", logging.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to clear authentication")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Google Drive authentication cleared",
	})
}

func (s *Server) handleStreamVideo(w http.ResponseWriter, r *http.Request) {
	s.streamer.Stream(w, r, r.PathValue("fileID"), stream.KindVideo)
}

func (s *Server) handleViewImage(w http.ResponseWriter, r *http.Request) {
	s.streamer.Stream(w, r, r.PathValue("fileID"), stream.KindImage)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	s.streamer.Stream(w, r, r.PathValue("fileID"), stream.KindAny)
}

// handleDownloadFolder streams a folder subtree as a ZIP named after the
// folder.
func (s *Server) handleDownloadFolder(w http.ResponseWriter, r *http.Request) {
	folderID := r.PathValue("folderID")

	ref, err := s.archiver.ResolveFolder(r.Context(), folderID)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrNotFolder):
			writeJSONError(w, http.StatusBadRequest, "Not a folder")
		case errors.Is(err, drive.ErrNotFound):
			writeJSONError(w, http.StatusNotFound, "Folder not found")
		default:
			s.logger.Error("folder download failed", logging.FolderID(folderID), logging.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "Failed to download folder")
		}
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.Name+".zip"))

	cw := &countingWriter{ResponseWriter: w}
	if err := s.archiver.StreamFolder(r.Context(), cw, folderID); err != nil {
		s.archiveError(w, cw.written, folderID, "Failed to download folder", err)
	}
}

// handleDownloadMultiple streams the files named by the fileIds query
// parameter as download.zip. Folder IDs among them are skipped.
func (s *Server) handleDownloadMultiple(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("fileIds")

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeJSONError(w, http.StatusBadRequest, "File IDs are required")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="download.zip"`)

	cw := &countingWriter{ResponseWriter: w}
	if err := s.archiver.StreamFiles(r.Context(), cw, ids); err != nil {
		s.archiveError(w, cw.written, strings.Join(ids, ","), "Failed to download files", err)
	}
}

// countingWriter tracks how many body bytes have reached the client, which
// decides how an archive failure is reported.
type countingWriter struct {
	http.ResponseWriter
	written int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.ResponseWriter.Write(b)
	c.written += int64(n)
	return n, err
}

// archiveError reports an assembly failure. Before the first body byte the
// client still gets a regular error response; after that the only honest
// signal left is killing the connection so the client sees a truncated
// transfer.
func (s *Server) archiveError(w http.ResponseWriter, written int64, subject, msg string, err error) {
	if written == 0 {
		s.logger.Error("archive failed",
			slog.String("subject", subject),
			logging.Err(err),
		)
		w.Header().Del("Content-Disposition")
		writeJSONError(w, http.StatusInternalServerError, msg)
		return
	}

	s.logger.Error("archive aborted mid-stream",
		slog.String("subject", subject),
		logging.Err(err),
	)
	panic(http.ErrAbortHandler)
}

// handleProxiedUpload relays the request body into a Drive resumable-upload
// session without buffering the file server-side.
func (s *Server) handleProxiedUpload(w http.ResponseWriter, r *http.Request) {
	name := r.Header.Get("X-File-Name")
	mimeType := r.Header.Get("X-File-Type")
	if name == "" || mimeType == "" || r.ContentLength <= 0 {
		writeJSONError(w, http.StatusBadRequest, "File name, type, and content length are required in headers")
		return
	}

	folderID := strings.TrimSpace(r.Header.Get("X-Folder-Id"))
	if folderID == "" && s.cfg != nil {
		folderID = s.cfg.RootFolderID
	}
	if folderID == "" {
		writeJSONError(w, http.StatusBadRequest, "Google Drive folder ID not configured")
		return
	}

	uploadURL, err := s.uploader.StartResumableUpload(r.Context(), name, mimeType, folderID)
	if err != nil {
		s.logger.Error("resumable upload initiation failed", logging.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "Could not get upload URL from Google")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPut, uploadURL, r.Body)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to stream to Google Drive")
		return
	}
	req.ContentLength = r.ContentLength

	resp, err := s.uploadClient.Do(req)
	if err != nil {
		s.logger.Error("upload relay failed", logging.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to stream to Google Drive")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to stream to Google Drive")
		return
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		writeJSON(w, resp.StatusCode, map[string]string{
			"error":   "Upload to Google Drive failed",
			"details": string(body),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if json.Valid(body) {
		_, _ = w.Write(body)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": string(body)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const fileModeCallbackPage = `<html>
  <body style="font-family: sans-serif; max-width: 600px; margin: 50px auto;">
    <h2>Google Drive Authentication Successful</h2>
    <p>Your credential has been saved locally. You can close this window and
    return to the application.</p>
  </body>
</html>`

const envModeCallbackPage = `<html>
  <body style="font-family: sans-serif; max-width: 600px; margin: 50px auto;">
    <h2>Google Drive Authentication Successful</h2>
    <p><strong>Important:</strong> this deployment keeps credentials in the
    environment. To make this authentication survive restarts:</p>
    <ol>
      <li>Find the refreshed credential JSON in the service logs</li>
      <li>Set it as the <strong>GOOGLE_TOKENS</strong> environment variable</li>
      <li>Redeploy the service</li>
    </ol>
    <p>Until then the server will ask you to re-authenticate after each
    deployment.</p>
  </body>
</html>`
