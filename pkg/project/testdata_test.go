package project

const sampleConfig = `{
  "description": "test-mock",
  "endpoints": {
    "api/test": {
      "when": [
        {
          "method": "GET",
          "request": {
            "queries": {"filter": {"operator": "is", "value": "active"}},
            "headers": {"x-test": "value"}
          },
          "response": {
            "status": 200,
            "headers": {"content-type": "text/plain"},
            "body": "mocked response"
          }
        },
        {
          "method": "get",
          "request": {
            "queries": {"page": {"operator": "is", "value": "1"}, "sort": {"operator": "is", "value": "asc"}}
          },
          "response": {"status": 200, "headers": {}, "body": {"items": [1, 2], "page": 1}},
          "delay": 25
        },
        {
          "method": "POST",
          "request": {"body": {"name": "ada", "age": 36}},
          "response": {"status": 201, "headers": {"Content-Type": "application/json"}, "body": {"id": 7}}
        },
        {
          "method": "GET",
          "request": {"queries": {"q": {"operator": "contains", "value": "abc"}}},
          "response": {"status": 200, "headers": {}}
        },
        {
          "method": "GET",
          "response": {"status": 204, "headers": {}}
        },
        {
          "method": "GET",
          "response": {"status": 500, "headers": {}}
        }
      ]
    },
    "/slash/path": {
      "when": [{"method": "GET", "response": {"status": 200, "headers": {}, "body": "slash"}}]
    }
  }
}`
