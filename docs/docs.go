package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "Local API of the SIAKAD sync agent",
        "title": "SIAKAD Agent API",
        "version": "1.0"
    },
    "host": "127.0.0.1:8787",
    "basePath": "/api/v1",
    "schemes": ["http"],
    "paths": {
        "/state": {
            "get": {
                "tags": ["State"],
                "summary": "Snapshot",
                "description": "Current user, tasks, messages and courses with derived counts",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Snapshot"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Student Login",
                "description": "Login with NIM and password; the returned user is stored locally",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "credentials",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "nim": {"type": "string", "example": "2101"},
                                "password": {"type": "string"}
                            }
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Login successful"},
                    "401": {"description": "Invalid credentials"},
                    "502": {"description": "SIAKAD server unreachable"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Student Registration",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "student",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "nim": {"type": "string"},
                                "name": {"type": "string"},
                                "email": {"type": "string"},
                                "password": {"type": "string"},
                                "type": {"type": "string", "enum": ["reguler", "karyawan"]}
                            }
                        }
                    }
                ],
                "responses": {
                    "201": {"description": "Registered"},
                    "400": {"description": "Invalid input"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Forget the stored student",
                "responses": {"200": {"description": "Logged out"}}
            }
        },
        "/auth/password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "responses": {
                    "200": {"description": "Server message"},
                    "401": {"description": "Not logged in"}
                }
            }
        },
        "/auth/fcm-token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register the device push token",
                "responses": {"200": {"description": "Updated user"}}
            }
        },
        "/tasks": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List tasks",
                "parameters": [{"in": "query", "name": "done", "type": "boolean"}],
                "responses": {"200": {"description": "Tasks of the current user"}}
            },
            "post": {
                "tags": ["Tasks"],
                "summary": "Add a task",
                "description": "Stored locally at once and pushed in the background",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Title required"}
                }
            }
        },
        "/tasks/{id}": {
            "put": {
                "tags": ["Tasks"],
                "summary": "Edit a task title",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "Updated"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Tasks"],
                "summary": "Delete a task",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"204": {"description": "Deleted"}, "404": {"description": "Not found"}}
            }
        },
        "/tasks/{id}/toggle": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Toggle done",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "Updated"}}
            }
        },
        "/messages": {
            "get": {
                "tags": ["Messages"],
                "summary": "List messages",
                "parameters": [{"in": "query", "name": "unread", "type": "boolean"}],
                "responses": {"200": {"description": "Messages of the current user"}}
            },
            "post": {
                "tags": ["Messages"],
                "summary": "Send a message to another student by name or NIM",
                "responses": {
                    "201": {"description": "Sent"},
                    "404": {"description": "Recipient not found"}
                }
            }
        },
        "/messages/local": {
            "post": {
                "tags": ["Messages"],
                "summary": "Add a local-only message",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/messages/{id}/read": {
            "post": {
                "tags": ["Messages"],
                "summary": "Mark a message read",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "Updated"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List courses with attendance",
                "responses": {"200": {"description": "Courses"}}
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Add a course and schedule its reminder",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/courses/{id}": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Remove a course and cancel its reminder",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/courses/{id}/attendance": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark today's attendance",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "Updated course"}}
            }
        },
        "/schedule": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Weekly schedule",
                "responses": {"200": {"description": "Schedule by weekday 1-5"}}
            }
        },
        "/schedule/{day}": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Classes of a day with their time status",
                "parameters": [{"in": "path", "name": "day", "type": "integer", "required": true}],
                "responses": {"200": {"description": "Items"}, "400": {"description": "Invalid day"}}
            },
            "post": {
                "tags": ["Schedule"],
                "summary": "Add a class to a day",
                "parameters": [{"in": "path", "name": "day", "type": "integer", "required": true}],
                "responses": {"201": {"description": "Items of the day"}}
            }
        },
        "/schedule/{day}/{id}": {
            "delete": {
                "tags": ["Schedule"],
                "summary": "Remove a class",
                "parameters": [
                    {"in": "path", "name": "day", "type": "integer", "required": true},
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/preferences": {
            "get": {
                "tags": ["Preferences"],
                "summary": "Theme and reminder time",
                "responses": {"200": {"description": "Preferences"}}
            },
            "put": {
                "tags": ["Preferences"],
                "summary": "Update theme and/or reminder time",
                "responses": {"200": {"description": "Preferences"}, "400": {"description": "Invalid value"}}
            }
        },
        "/notifications/delivered": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Report a notification shown by the OS",
                "description": "Attendance notifications are mirrored into the inbox",
                "responses": {"200": {"description": "Whether it was mirrored"}}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "127.0.0.1:8787",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "SIAKAD Agent API",
	Description:      "Local API of the SIAKAD sync agent",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
