package api

import (
	"net/http"
	"os"
	"strings"

	"visatrack/internal/auth"
	"visatrack/internal/ws"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
}

func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	d.Log.Info("WebSocket connection attempt",
		zap.String("remote", r.RemoteAddr),
		zap.String("path", r.URL.Path),
	)

	// Check Hub before upgrading
	if d.Hub == nil {
		d.Log.Error("WebSocket hub not initialized")
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	userID := auth.GetUserID(r.Context())
	if userID == "" {
		userID = extractUserIDFromRequest(r)
	}
	if userID == "" {
		userID = "anonymous"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	wsConn := ws.NewConn(conn, d.Hub, userID)
	d.Hub.Register(wsConn)

	go wsConn.WritePump()
	go wsConn.ReadPump()
}

// extractUserIDFromRequest pulls the user from a JWT passed via query
// parameter or header, the way browser WebSocket clients have to.
func extractUserIDFromRequest(r *http.Request) string {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		return r.Header.Get("X-User-ID")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if userID, ok := claims["sub"].(string); ok {
			return userID
		}
	}
	return ""
}
