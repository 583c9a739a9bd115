package routes

import (
	"libraryhub_go/config"
	"libraryhub_go/controllers"
	"libraryhub_go/metrics"
	"libraryhub_go/middleware"
	"libraryhub_go/models"
	"libraryhub_go/services"
	"libraryhub_go/utils"
	"libraryhub_go/websocket"

	"github.com/gin-gonic/gin"
)

// Dependencies are the wired services the routes dispatch to
type Dependencies struct {
	Config *config.AppConfig

	Auth           *services.AuthService
	Books          *services.BookService
	Borrow         *services.BorrowService
	Students       *services.StudentService
	Recommendation *services.RecommendationService
	Leaderboard    *services.LeaderboardService
	Game           *services.Gamification

	Hub          *websocket.Hub
	Uploader     *utils.FileUploader
	LoginLimiter *middleware.RateLimiter
}

// SetupRoutes registers every endpoint on r
func SetupRoutes(r *gin.Engine, deps *Dependencies) {
	cors := middleware.GetDefaultCORSConfig()
	if deps.Config.Server.Mode == gin.ReleaseMode {
		cors = middleware.GetProductionCORSConfig(deps.Config.CORSOrigins)
	} else if len(deps.Config.CORSOrigins) > 0 {
		cors.AllowOrigins = deps.Config.CORSOrigins
	}
	r.Use(middleware.CORS(cors))
	r.Use(middleware.Logger())
	r.Use(metrics.Middleware())

	authController := controllers.NewAuthController(deps.Auth, deps.Config.Cookie)
	bookController := controllers.NewBookController(deps.Books, deps.Uploader)
	borrowController := controllers.NewBorrowController(deps.Borrow)
	studentController := controllers.NewStudentController(deps.Students)
	gameController := controllers.NewGamificationController(deps.Game, deps.Borrow, deps.Recommendation, deps.Leaderboard)

	api := r.Group("/api")
	{
		// ====== Auth ======
		login := []gin.HandlerFunc{}
		if deps.LoginLimiter != nil {
			login = append(login, deps.LoginLimiter.Handler())
		}
		api.POST("/admin/login", append(login, authController.AdminLogin)...)
		api.POST("/student/login", append(login, authController.StudentLogin)...)
		api.POST("/logout", authController.Logout)

		// ====== Admin ======
		admin := api.Group("/admin", middleware.RequireRole(deps.Auth, models.RoleAdmin))
		{
			admin.POST("/add-book", bookController.CreateBook)
			admin.GET("/books", bookController.GetBooks)
			admin.PUT("/update-book/:id", bookController.UpdateBook)
			admin.DELETE("/delete-book/:id", bookController.DeleteBook)
			admin.POST("/books/:id/cover", bookController.UploadCover)

			admin.POST("/borrow-book", borrowController.BorrowBook)
			admin.POST("/return-book", borrowController.ReturnBook)
			admin.GET("/all-borrowed", borrowController.AllBorrowed)

			admin.GET("/students", studentController.ListStudents)
			admin.POST("/students", studentController.CreateStudent)
			admin.DELETE("/students/:id", studentController.DeleteStudent)
			admin.GET("/stats", studentController.LibraryStats)
		}

		// ====== Student ======
		student := api.Group("/student", middleware.RequireRole(deps.Auth, models.RoleStudent))
		{
			student.GET("/borrowed-books/:id", studentController.BorrowedBooks)
			student.PUT("/update-password/:id", studentController.UpdatePassword)
			student.GET("/stats/:id", studentController.Stats)

			student.GET("/recommendations/:id", gameController.Recommendations)
			student.GET("/similar/:bookId", gameController.Similar)
			student.GET("/trending", gameController.Trending)
			student.POST("/rate/:id/:bookId", gameController.RateBook)
			student.GET("/leaderboard", gameController.Leaderboard)
			student.GET("/badges", gameController.Badges)
			student.POST("/streak/:id", gameController.TouchStreak)
		}
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if deps.Hub != nil {
		r.GET("/ws", deps.Hub.HandleConnection)
	}
	if deps.Config.UploadDir != "" {
		r.Static("/uploads", deps.Config.UploadDir)
	}
}
