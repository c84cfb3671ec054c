package routes

import (
	game_constants "Forest/constants/game"
	"Forest/controllers"
	utils "Forest/utils"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, s *controllers.Services) {
	// utils global
	router.Use(utils.ErrorHandler(s.Logger))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes group
	api := router.Group("/")

	api.GET("/ping", controllers.Ping)

	api.GET("/public_key", controllers.PublicKey(s))

	api.POST("/register", controllers.Register(s))

	api.POST("/login", controllers.Login(s))

	authenticated := api.Group("/")
	authenticated.Use(s.Auth.AuthRequired())
	{
		authenticated.DELETE("/auth/logout", controllers.Logout)

		// Rooms
		authenticated.POST("/create_room", controllers.CreateRoom(s))
		authenticated.POST("/join_room_route", controllers.JoinRoom(s))
		authenticated.POST("/remove_player_from_room", controllers.RemovePlayerFromRoom(s))
		authenticated.POST("/get_room_data", controllers.GetRoomData(s))
		authenticated.POST("/get_group1", controllers.GetGroup(s, game_constants.GROUP_1))
		authenticated.POST("/get_group2", controllers.GetGroup(s, game_constants.GROUP_2))

		// Characters
		authenticated.POST("/get_characters", controllers.GetCharacters(s))
		authenticated.POST("/get_character", controllers.GetCharacter(s))
		authenticated.POST("/save_character", controllers.SaveCharacter(s))
		authenticated.POST("/edit_character", controllers.EditCharacter(s))
		authenticated.POST("/delete_character", controllers.DeleteCharacter(s))

		// Abilities
		authenticated.POST("/get_abilities", controllers.GetAbilities(s))
		authenticated.POST("/get_ability_details", controllers.GetAbilityDetails(s))
	}
}
