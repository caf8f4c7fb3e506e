// Package docs serves the swagger document for the /api routes.
// It follows the layout `swag init -g Main.go` writes; keep it in step with
// the handler annotations when routes change.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "list products",
                "parameters": [
                    {"type": "string", "description": "exact category", "name": "category", "in": "query"},
                    {"type": "number", "description": "minimum price", "name": "minPrice", "in": "query"},
                    {"type": "number", "description": "maximum price", "name": "maxPrice", "in": "query"},
                    {"type": "string", "description": "case-insensitive name search", "name": "search", "in": "query"},
                    {"type": "integer", "description": "page size (default 50, max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.productListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "create a product",
                "parameters": [
                    {"description": "product", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.createProductRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Product"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "fetch a product",
                "parameters": [
                    {"type": "string", "description": "product id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Product"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "update a product",
                "parameters": [
                    {"type": "string", "description": "product id", "name": "id", "in": "path", "required": true},
                    {"description": "fields to update", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.updateProductRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Product"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "delete a product",
                "parameters": [
                    {"type": "string", "description": "product id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/products/{id}/reviews": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "add a review",
                "parameters": [
                    {"type": "string", "description": "product id", "name": "id", "in": "path", "required": true},
                    {"description": "rating 1-5 and comment", "name": "review", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.reviewRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "register a user",
                "parameters": [
                    {"description": "name, email and password", "name": "user", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "log in",
                "parameters": [
                    {"description": "email and password", "name": "credentials", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users/logout": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "log out",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users/profile": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "update own profile",
                "parameters": [
                    {"description": "fields to update", "name": "profile", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.updateProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "own profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "list users",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.User"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users/{id}": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "update a user",
                "parameters": [
                    {"type": "string", "description": "user id", "name": "id", "in": "path", "required": true},
                    {"description": "fields to update", "name": "user", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.adminUpdateUserRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "delete a user",
                "parameters": [
                    {"type": "string", "description": "user id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users/reset-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "request a password reset",
                "parameters": [
                    {"description": "account email", "name": "email", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.resetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/users/reset-password/{token}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "reset password with a token",
                "parameters": [
                    {"type": "string", "description": "reset token", "name": "token", "in": "path", "required": true},
                    {"description": "new password", "name": "password", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.resetPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/orders": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "list all orders",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Order"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "create an order",
                "parameters": [
                    {"description": "order", "name": "order", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.createOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Order"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/orders/myorders": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "list own orders",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Order"}}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "fetch an order",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/orders/{id}/pay": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "mark an order as paid",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/orders/{id}/deliver": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "mark an order as delivered",
                "parameters": [
                    {"type": "string", "description": "order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/upload": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["upload"],
                "summary": "upload a product image",
                "parameters": [
                    {"type": "file", "description": "jpg, jpeg, png or webp", "name": "image", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "handlers.adminUpdateUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string", "enum": ["user", "admin"]}
            }
        },
        "handlers.createOrderRequest": {
            "type": "object",
            "required": ["orderItems", "paymentMethod", "shippingAddress"],
            "properties": {
                "orderItems": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/handlers.orderItemRequest"}},
                "paymentMethod": {"type": "string"},
                "shippingAddress": {"$ref": "#/definitions/models.ShippingAddress"}
            }
        },
        "handlers.createProductRequest": {
            "type": "object",
            "required": ["category", "image", "name", "price"],
            "properties": {
                "category": {"type": "string"},
                "description": {"type": "string"},
                "image": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "stock": {"type": "integer", "minimum": 0}
            }
        },
        "handlers.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handlers.orderItemRequest": {
            "type": "object",
            "required": ["product", "quantity"],
            "properties": {
                "product": {"type": "string"},
                "quantity": {"type": "integer", "maximum": 10000, "minimum": 1}
            }
        },
        "handlers.productListResponse": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "products": {"type": "array", "items": {"$ref": "#/definitions/models.Product"}},
                "total": {"type": "integer"}
            }
        },
        "handlers.registerRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "password": {"type": "string", "maxLength": 72, "minLength": 8}
            }
        },
        "handlers.resetPasswordRequest": {
            "type": "object",
            "required": ["password"],
            "properties": {
                "password": {"type": "string", "maxLength": 72, "minLength": 8}
            }
        },
        "handlers.resetRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"}
            }
        },
        "handlers.reviewRequest": {
            "type": "object",
            "required": ["rating"],
            "properties": {
                "comment": {"type": "string"},
                "rating": {"type": "integer", "maximum": 5, "minimum": 1}
            }
        },
        "handlers.updateProfileRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "password": {"type": "string", "maxLength": 72, "minLength": 8}
            }
        },
        "handlers.updateProductRequest": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "description": {"type": "string"},
                "image": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "stock": {"type": "integer", "minimum": 0}
            }
        },
        "models.Order": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "deliveredAt": {"type": "string"},
                "id": {"type": "string"},
                "itemsPrice": {"type": "number"},
                "orderItems": {"type": "array", "items": {"$ref": "#/definitions/models.OrderItem"}},
                "paidAt": {"type": "string"},
                "paymentMethod": {"type": "string"},
                "shippingAddress": {"$ref": "#/definitions/models.ShippingAddress"},
                "shippingPrice": {"type": "number"},
                "status": {"type": "string", "enum": ["pending", "paid", "delivered"]},
                "totalPrice": {"type": "number"},
                "updatedAt": {"type": "string"},
                "user": {"type": "string"}
            }
        },
        "models.OrderItem": {
            "type": "object",
            "properties": {
                "image": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "product": {"type": "string"},
                "quantity": {"type": "integer"}
            }
        },
        "models.Product": {
            "type": "object",
            "properties": {
                "category": {"type": "string", "example": "Laptops"},
                "createdAt": {"type": "string"},
                "description": {"type": "string"},
                "id": {"type": "string"},
                "image": {"type": "string"},
                "name": {"type": "string", "example": "Lenovo 15.6 Inch Full HD Notebook"},
                "numReviews": {"type": "integer"},
                "price": {"type": "number", "example": 10.99},
                "rating": {"type": "number"},
                "reviews": {"type": "array", "items": {"$ref": "#/definitions/models.Review"}},
                "stock": {"type": "integer", "example": 100},
                "updatedAt": {"type": "string"}
            }
        },
        "models.Review": {
            "type": "object",
            "properties": {
                "comment": {"type": "string", "example": "Great product!"},
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"},
                "rating": {"type": "integer", "maximum": 5, "minimum": 1},
                "user": {"type": "string", "example": "507f1f77bcf86cd799439011"}
            }
        },
        "models.ShippingAddress": {
            "type": "object",
            "required": ["address", "city", "country", "postalCode"],
            "properties": {
                "address": {"type": "string"},
                "city": {"type": "string"},
                "country": {"type": "string"},
                "postalCode": {"type": "string"}
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string", "enum": ["user", "admin"]},
                "updatedAt": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "description": "Type \"Bearer\" followed by a space and the token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Shop API",
	Description:      "E-commerce backend: catalog with reviews, users and orders.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
